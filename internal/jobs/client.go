// Package jobs fetches vacancies from the hh.ru API and turns them into job
// descriptions for an interview.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "spigell/hh-interviewer (spigelly@gmail.com)"

	vacanciesPath  = "/vacancies"
	defaultPerPage = 20
	maxPerPage     = 100
)

// Client reads public vacancy data. The token is optional.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:  strings.TrimSpace(token),
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// GetVacancy returns the full vacancy, description included.
func (c *Client) GetVacancy(ctx context.Context, id string) (*Vacancy, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("vacancy id is required")
	}

	var vacancy Vacancy
	if err := c.getJSON(ctx, fmt.Sprintf("%s%s/%s", c.APIURL, vacanciesPath, url.PathEscape(id)), nil, &vacancy); err != nil {
		return nil, fmt.Errorf("get vacancy %s: %w", id, err)
	}
	return &vacancy, nil
}

type SearchParams struct {
	Text       string
	Area       int
	Experience string
	PerPage    int
}

// Search returns the first page of vacancies matching params. Search results
// carry only a snippet; use GetVacancy for the description.
func (c *Client) Search(ctx context.Context, params SearchParams) (*Vacancies, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, errors.New("search text is required")
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	q := url.Values{}
	q.Set("text", text)
	q.Set("per_page", strconv.Itoa(perPage))
	if params.Area > 0 {
		q.Set("area", strconv.Itoa(params.Area))
	}
	if params.Experience != "" {
		q.Set("experience", params.Experience)
	}

	var response itemResponse
	if err := c.getJSON(ctx, c.APIURL+vacanciesPath, q, &response); err != nil {
		return nil, fmt.Errorf("search vacancies: %w", err)
	}

	c.logger.Debug("got response from HH.ru", zap.Int("found", response.Found), zap.Int("items", len(response.Items)))

	var items []*Vacancy
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &items,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(response.Items); err != nil {
		return nil, fmt.Errorf("decode vacancies: %w", err)
	}

	return &Vacancies{Items: items, Found: response.Found}, nil
}
