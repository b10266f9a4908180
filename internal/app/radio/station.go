package radio

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/domain/track"
	"github.com/osa030/streambox/internal/domain/user"
)

const maxRetries = 3

// Checker runs the enqueue filters on a candidate.
type Checker interface {
	Execute(ctx context.Context, req filter.TrackRequest, t *track.Track, u *user.Session) filter.Result
}

// Station picks the next radio track: candidates come from the provider chain,
// recently played artists are skipped and the filters decide.
type Station struct {
	chain            *ProviderChain
	checker          Checker
	candidateCount   int
	maxRecentArtists int

	mu            sync.Mutex
	recentArtists []string // most recent first
}

// NewStation creates a station over chain. checker may be nil.
func NewStation(chain *ProviderChain, checker Checker, candidateCount, maxRecentArtists int) *Station {
	if candidateCount <= 0 {
		candidateCount = 5
	}
	return &Station{
		chain:            chain,
		checker:          checker,
		candidateCount:   candidateCount,
		maxRecentArtists: maxRecentArtists,
	}
}

// Next returns one candidate accepted by the filters.
// seeds are recent tracks, most recent first; queued tracks are never picked again.
func (s *Station) Next(ctx context.Context, seeds []*track.Track, queued []track.QueuedTrack, u *user.Session) (Candidate, error) {
	exclude := make(map[string]bool, len(queued))
	for _, qt := range queued {
		exclude[qt.ID()] = true
	}

	for retry := 0; retry < maxRetries; retry++ {
		candidates, err := s.chain.Candidates(ctx, s.candidateCount, seeds, exclude)
		if err != nil {
			return Candidate{}, err
		}

		for _, c := range s.filterByRecentArtists(candidates) {
			if s.checker != nil {
				req := filter.TrackRequest{TrackID: c.Track.ID, Source: track.SourceRadio}
				if u != nil {
					req.UserID = u.ID
				}
				result := s.checker.Execute(ctx, req, c.Track, u)
				if !result.Accepted {
					zlog.Debug().Msgf("radio: candidate rejected by filter: track_id=%s title=%s reason=%s",
						c.Track.ID, c.Track.Title, result.Code)
					continue
				}
			}
			zlog.Info().Msgf("radio: picked track_id=%s title=%s provider=%s", c.Track.ID, c.Track.Title, c.DisplayName)
			return c, nil
		}

		// All candidates were filtered out, exclude them and retry
		for _, c := range candidates {
			exclude[c.Track.ID] = true
		}
		zlog.Debug().Msgf("radio: all candidates filtered out, retrying: retry=%d/%d excluded_count=%d",
			retry+1, maxRetries, len(exclude))
	}

	return Candidate{}, errors.Wrap(ErrNoCandidates, "no suitable radio candidates after filtering")
}

// NoteArtist records that a track by artist started playing.
func (s *Station) NoteArtist(artist string) {
	if artist == "" || s.maxRecentArtists == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := []string{artist}
	for _, a := range s.recentArtists {
		if !strings.EqualFold(a, artist) {
			recent = append(recent, a)
		}
	}
	if len(recent) > s.maxRecentArtists {
		recent = recent[:s.maxRecentArtists]
	}
	s.recentArtists = recent
}

// RecentArtists returns the recently played artists, most recent first.
func (s *Station) RecentArtists() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recentArtists...)
}

// filterByRecentArtists drops candidates by recent artists. If that leaves
// nothing, the history is forgotten and every candidate is returned.
func (s *Station) filterByRecentArtists(candidates []Candidate) []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxRecentArtists == 0 || len(s.recentArtists) == 0 {
		return candidates
	}

	var filtered []Candidate
	for _, c := range candidates {
		if !s.isRecentArtistLocked(c.Track.ArtistName()) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		s.recentArtists = nil
		return candidates
	}
	return filtered
}

func (s *Station) isRecentArtistLocked(artist string) bool {
	if artist == "" {
		return false
	}
	for _, recent := range s.recentArtists {
		if strings.EqualFold(artist, recent) {
			return true
		}
	}
	return false
}
