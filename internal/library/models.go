package library

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaType represents the kind of media a file contains
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// Status is the lifecycle state of a rename proposal
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusDeleted    Status = "deleted"
	StatusError      Status = "error"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusSkipped    Status = "skipped"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusProcessing,
	StatusProcessed,
	StatusSkipped,
	StatusError,
	StatusDeleted,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Rank orders statuses for display: approved above rejected above the rest.
func (s Status) Rank() int {
	switch s {
	case StatusApproved:
		return 2
	case StatusRejected:
		return 1
	default:
		return 0
	}
}

// MediaFile describes a source file and everything learned about it.
// Values are copied, never shared; use the With* helpers to derive updates.
type MediaFile struct {
	ID           string    `json:"id"`
	OriginalPath string    `json:"original_path"`
	FileName     string    `json:"file_name"`
	ParsedTitle  string    `json:"parsed_title,omitempty"`
	Type         MediaType `json:"type"`
	Title        string    `json:"title,omitempty"`
	Year         *int      `json:"year,omitempty"`
	Season       *int      `json:"season,omitempty"`
	Episode      *int      `json:"episode,omitempty"`
	EpisodeTitle string    `json:"episode_title,omitempty"`
	Resolution   string    `json:"resolution,omitempty"`
	Codec        string    `json:"codec,omitempty"`
}

// Extension returns the original file extension including the dot.
func (m MediaFile) Extension() string {
	return filepath.Ext(m.OriginalPath)
}

func (m MediaFile) WithTitle(title string) MediaFile {
	m.Title = title
	return m
}

func (m MediaFile) WithYear(year *int) MediaFile {
	m.Year = copyInt(year)
	return m
}

func (m MediaFile) WithEpisode(season, episode *int, episodeTitle string) MediaFile {
	m.Season = copyInt(season)
	m.Episode = copyInt(episode)
	m.EpisodeTitle = episodeTitle
	return m
}

func (m MediaFile) WithQuality(resolution, codec string) MediaFile {
	m.Resolution = resolution
	m.Codec = codec
	return m
}

// Clone returns a deep copy, so pointer fields are not shared.
func (m MediaFile) Clone() MediaFile {
	m.Year = copyInt(m.Year)
	m.Season = copyInt(m.Season)
	m.Episode = copyInt(m.Episode)
	return m
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

// Proposal is a suggested rename of one source file.
type Proposal struct {
	ID           string     `json:"id"`
	ScanTime     time.Time  `json:"scan_time"`
	Source       MediaFile  `json:"source"`
	ProposedName string     `json:"proposed_name"`
	Status       Status     `json:"status"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	TargetPath   string     `json:"target_path,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// ProposedPath returns the proposed name using OS separators.
func (p *Proposal) ProposedPath() string {
	return filepath.FromSlash(strings.Trim(p.ProposedName, "/"))
}

// Stats holds proposal counts per status.
type Stats struct {
	Total  int            `json:"total"`
	Counts map[Status]int `json:"counts"`
}

// Count returns the number of proposals in the given status.
func (s Stats) Count(status Status) int {
	return s.Counts[status]
}

// SortKey selects the ordering of List.
type SortKey string

const (
	SortByScanTime   SortKey = "scan_time"
	SortBySourcePath SortKey = "source_path"
	SortByStatus     SortKey = "status"
)

// ParseSortKey maps user input to a SortKey, defaulting to scan time.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortBySourcePath, "source", "path":
		return SortBySourcePath
	case SortByStatus:
		return SortByStatus
	default:
		return SortByScanTime
	}
}
