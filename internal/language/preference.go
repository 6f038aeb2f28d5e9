package language

import "sync"

const maxAlternates = 2

// Preference tracks the selected, recommended and alternate capture languages.
// There is always exactly one current tag.
type Preference struct {
	mu          sync.RWMutex
	current     Tag
	recommended Tag
	alternates  []Tag
	autoSwitch  bool
}

// NewPreference builds a preference recommended from the session's declared language.
func NewPreference(declared string, autoSwitch bool) *Preference {
	recommended := FirstKnown(Expand(declared))
	p := &Preference{
		current:     recommended,
		recommended: recommended,
		autoSwitch:  autoSwitch,
	}
	p.alternates = alternatesFor(recommended)
	return p
}

func alternatesFor(current Tag) []Tag {
	alts := make([]Tag, 0, maxAlternates)
	for _, tag := range supported {
		if tag == current {
			continue
		}
		alts = append(alts, tag)
		if len(alts) == maxAlternates {
			break
		}
	}
	return alts
}

func (p *Preference) Current() Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func (p *Preference) Recommended() Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.recommended
}

// Alternates returns the extra tags passed to the recognizer for mixed-language answers.
func (p *Preference) Alternates() []Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Tag, len(p.alternates))
	copy(out, p.alternates)
	return out
}

func (p *Preference) AutoSwitch() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoSwitch
}

func (p *Preference) SetAutoSwitch(on bool) {
	p.mu.Lock()
	p.autoSwitch = on
	p.mu.Unlock()
}

// Select records an explicit user choice. Unknown tags are ignored.
func (p *Preference) Select(tag Tag) {
	if tag == Unknown {
		return
	}
	p.mu.Lock()
	p.current = tag
	p.alternates = alternatesFor(tag)
	p.mu.Unlock()
}

// Detect records an auto-detected language. It reports the previous tag and
// whether the current tag changed; nothing changes while auto-switch is off.
func (p *Preference) Detect(tag Tag) (Tag, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.current
	if !p.autoSwitch || tag == Unknown || tag == old {
		return old, false
	}

	p.current = tag
	p.alternates = alternatesFor(tag)
	return old, true
}
