package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen/portfolio-backend/internal/cache"
)

const (
	defaultBaseURL = "https://api.github.com"
	cacheTTL       = time.Hour
)

// User is the profile subset the showcase renders.
type User struct {
	Login       string  `json:"login"`
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	PublicRepos int     `json:"public_repos"`
	Followers   int     `json:"followers"`
	Following   int     `json:"following"`
	CreatedAt   string  `json:"created_at"`
}

// Repo is one repository card on the showcase.
type Repo struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Stars       int     `json:"stargazers_count"`
	Forks       int     `json:"forks_count"`
	Language    *string `json:"language"`
	UpdatedAt   string  `json:"updated_at"`
	HTMLURL     string  `json:"html_url"`
}

// Profile bundles the showcase payload.
type Profile struct {
	User  User   `json:"user"`
	Repos []Repo `json:"repos"`
}

// Cache is the key-value capability the service needs.
type Cache interface {
	Get(ctx context.Context, key string, v any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration) bool
}

// Service fetches GitHub showcase data, caching each piece for an hour under
// github:user:<username> and github:repos:<username>.
type Service struct {
	cache    Cache
	client   *http.Client
	baseURL  string
	username string
	token    string
	log      *zap.Logger
}

func NewService(c Cache, username, token string, log *zap.Logger) *Service {
	return &Service{
		cache:    c,
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  defaultBaseURL,
		username: username,
		token:    token,
		log:      log,
	}
}

// Profile returns the cached showcase data, fetching from the GitHub API on
// a miss.
func (s *Service) Profile(ctx context.Context) (Profile, error) {
	user, err := s.user(ctx)
	if err != nil {
		return Profile{}, err
	}

	repos, err := s.repos(ctx)
	if err != nil {
		return Profile{}, err
	}

	return Profile{User: user, Repos: repos}, nil
}

func (s *Service) user(ctx context.Context) (User, error) {
	key := cache.GitHubUserKey(s.username)

	var user User
	if s.cache.Get(ctx, key, &user) {
		return user, nil
	}

	if err := s.fetch(ctx, fmt.Sprintf("/users/%s", s.username), &user); err != nil {
		return User{}, err
	}

	s.cache.Set(ctx, key, user, cacheTTL)
	return user, nil
}

func (s *Service) repos(ctx context.Context) ([]Repo, error) {
	key := cache.GitHubReposKey(s.username)

	var repos []Repo
	if s.cache.Get(ctx, key, &repos) {
		return repos, nil
	}

	path := fmt.Sprintf("/users/%s/repos?sort=updated&per_page=10", s.username)
	if err := s.fetch(ctx, path, &repos); err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, repos, cacheTTL)
	return repos, nil
}

func (s *Service) fetch(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if s.token != "" {
		req.Header.Set("Authorization", "token "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("github fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github fetch: unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
