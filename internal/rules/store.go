package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/affiliatehq/reporting-service/internal/storage"
)

// Persisted under two separate keys because the assignment table grows
// independently of the rule configuration and can get large.
const (
	keyTeamConfig        = "team_config"
	keyManualAssignments = "manual_assignments"
)

// RuleType identifies which record field a pattern table matches against
type RuleType string

const (
	RuleSubID    RuleType = "subid"
	RulePartner  RuleType = "partner"
	RuleCampaign RuleType = "campaign"
)

// TeamMeta holds per-team metadata
type TeamMeta struct {
	Description   string  `json:"description"`
	RevenueTarget float64 `json:"revenue_target"`
	Active        bool    `json:"active"`
}

// ManualAssignment pins one specific row to a team regardless of patterns
type ManualAssignment struct {
	Team       string    `json:"team"`
	AssignedAt time.Time `json:"assigned_at"`
	Reason     string    `json:"reason"`
}

// teamConfig is the persisted rule configuration blob. TeamOrder records
// registration order explicitly so pattern-conflict resolution does not
// depend on map iteration: the first registered team wins.
type teamConfig struct {
	DefaultTeam      string              `json:"default_team"`
	TeamOrder        []string            `json:"team_order"`
	Teams            map[string]TeamMeta `json:"teams"`
	ManualMappings   map[string]string   `json:"manual_mappings"`
	SubIDPatterns    map[string][]string `json:"subid_patterns"`
	PartnerPatterns  map[string][]string `json:"partner_patterns"`
	CampaignPatterns map[string][]string `json:"campaign_patterns"`
}

func emptyTeamConfig(defaultTeam string) teamConfig {
	return teamConfig{
		DefaultTeam:      defaultTeam,
		Teams:            make(map[string]TeamMeta),
		ManualMappings:   make(map[string]string),
		SubIDPatterns:    make(map[string][]string),
		PartnerPatterns:  make(map[string][]string),
		CampaignPatterns: make(map[string][]string),
	}
}

// ConfigParseError indicates a persisted blob could not be decoded. The
// store recovers by falling back to defaults; resolution never fails over
// a corrupt config.
type ConfigParseError struct {
	Key string
	Err error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("corrupt configuration under key %q: %v", e.Key, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// Store is the typed accessor over the persisted team/rule configuration.
// Every mutator writes the full blob through to the backend immediately, so
// state is always durable with no explicit flush. Reads are safe under
// concurrent resolution; writes serialize on the mutex.
type Store struct {
	backend     storage.Store
	defaultTeam string

	mu          sync.RWMutex
	config      teamConfig
	assignments map[string]ManualAssignment
}

// NewStore creates a rule store backed by the given durable store and loads
// both persisted blobs. A corrupt blob is logged and replaced with empty
// defaults rather than failing construction.
func NewStore(ctx context.Context, backend storage.Store, defaultTeam string) *Store {
	s := &Store{
		backend:     backend,
		defaultTeam: defaultTeam,
	}
	if err := s.Reload(ctx); err != nil {
		log.Printf("rule store: %v (falling back to defaults)", err)
	}
	return s
}

// Reload re-reads both blobs from the backend, replacing the in-memory
// snapshot. Returns a *ConfigParseError if either blob is corrupt; the
// corrupt blob is replaced with defaults either way.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parseErr error

	s.config = emptyTeamConfig(s.defaultTeam)
	if raw, found, err := s.backend.Get(ctx, keyTeamConfig); err != nil {
		parseErr = fmt.Errorf("failed to load team config: %w", err)
	} else if found {
		var cfg teamConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			parseErr = &ConfigParseError{Key: keyTeamConfig, Err: err}
		} else {
			if cfg.DefaultTeam == "" {
				cfg.DefaultTeam = s.defaultTeam
			}
			ensureConfigMaps(&cfg)
			s.config = cfg
		}
	}

	s.assignments = make(map[string]ManualAssignment)
	if raw, found, err := s.backend.Get(ctx, keyManualAssignments); err != nil {
		if parseErr == nil {
			parseErr = fmt.Errorf("failed to load manual assignments: %w", err)
		}
	} else if found {
		var assignments map[string]ManualAssignment
		if err := json.Unmarshal([]byte(raw), &assignments); err != nil {
			if parseErr == nil {
				parseErr = &ConfigParseError{Key: keyManualAssignments, Err: err}
			}
		} else {
			s.assignments = assignments
		}
	}

	return parseErr
}

func ensureConfigMaps(cfg *teamConfig) {
	if cfg.Teams == nil {
		cfg.Teams = make(map[string]TeamMeta)
	}
	if cfg.ManualMappings == nil {
		cfg.ManualMappings = make(map[string]string)
	}
	if cfg.SubIDPatterns == nil {
		cfg.SubIDPatterns = make(map[string][]string)
	}
	if cfg.PartnerPatterns == nil {
		cfg.PartnerPatterns = make(map[string][]string)
	}
	if cfg.CampaignPatterns == nil {
		cfg.CampaignPatterns = make(map[string][]string)
	}
}

// AddTeam registers a team. First registration appends it to the priority
// order; re-registering updates metadata without changing priority.
func (s *Store) AddTeam(ctx context.Context, name string, meta TeamMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.config.Teams[name]; !exists {
		s.config.TeamOrder = append(s.config.TeamOrder, name)
	}
	s.config.Teams[name] = meta
	return s.persistConfig(ctx)
}

// AddPatternRule appends lowercase substring patterns to one team's table
func (s *Store) AddPatternRule(ctx context.Context, team string, ruleType RuleType, patterns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.config.Teams[team]; !exists {
		return fmt.Errorf("unknown team: %s", team)
	}

	var table map[string][]string
	switch ruleType {
	case RuleSubID:
		table = s.config.SubIDPatterns
	case RulePartner:
		table = s.config.PartnerPatterns
	case RuleCampaign:
		table = s.config.CampaignPatterns
	default:
		return fmt.Errorf("unknown rule type: %s", ruleType)
	}

	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			table[team] = append(table[team], p)
		}
	}
	return s.persistConfig(ctx)
}

// AddManualMapping registers an exact identifier → team mapping that
// bypasses pattern matching. Matching is case-insensitive.
func (s *Store) AddManualMapping(ctx context.Context, identifier, team string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.ManualMappings[strings.ToLower(strings.TrimSpace(identifier))] = team
	return s.persistConfig(ctx)
}

// GetActiveTeams returns the active team names in priority order
func (s *Store) GetActiveTeams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make([]string, 0, len(s.config.TeamOrder))
	for _, name := range s.config.TeamOrder {
		if meta, ok := s.config.Teams[name]; ok && meta.Active {
			teams = append(teams, name)
		}
	}
	return teams
}

// GetTeamMeta returns the metadata registered for a team
func (s *Store) GetTeamMeta(name string) (TeamMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.config.Teams[name]
	return meta, ok
}

// DefaultTeam returns the configured fallback team label
func (s *Store) DefaultTeam() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.DefaultTeam
}

// SetManualRowAssignment pins a row-identity key to a team
func (s *Store) SetManualRowAssignment(ctx context.Context, key, team, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments[key] = ManualAssignment{
		Team:       team,
		AssignedAt: time.Now().UTC(),
		Reason:     reason,
	}
	return s.persistAssignments(ctx)
}

// GetManualRowAssignment looks up a row-identity key
func (s *Store) GetManualRowAssignment(key string) (ManualAssignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[key]
	return a, ok
}

// RemoveManualRowAssignment deletes one manual override
func (s *Store) RemoveManualRowAssignment(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assignments, key)
	return s.persistAssignments(ctx)
}

// GetAllManualRowAssignments returns a copy of the assignment table
func (s *Store) GetAllManualRowAssignments() map[string]ManualAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]ManualAssignment, len(s.assignments))
	for k, v := range s.assignments {
		out[k] = v
	}
	return out
}

// lookupManualMapping resolves a case-insensitive exact identifier match
func (s *Store) lookupManualMapping(identifier string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, ok := s.config.ManualMappings[strings.ToLower(identifier)]
	return team, ok
}

// matchPatterns tests value against one pattern table in team priority
// order. Matching is case-insensitive substring containment; the first
// registered team with a matching pattern wins even if a later team's
// pattern would also match.
func (s *Store) matchPatterns(ruleType RuleType, value string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var table map[string][]string
	switch ruleType {
	case RuleSubID:
		table = s.config.SubIDPatterns
	case RulePartner:
		table = s.config.PartnerPatterns
	case RuleCampaign:
		table = s.config.CampaignPatterns
	}

	lowered := strings.ToLower(value)
	for _, team := range s.config.TeamOrder {
		for _, pattern := range table[team] {
			if strings.Contains(lowered, pattern) {
				return team, true
			}
		}
	}
	return "", false
}

// persistConfig writes the full configuration blob. Callers hold the lock.
func (s *Store) persistConfig(ctx context.Context) error {
	data, err := json.Marshal(s.config)
	if err != nil {
		return fmt.Errorf("failed to marshal team config: %w", err)
	}
	return s.backend.Put(ctx, keyTeamConfig, string(data))
}

// persistAssignments writes the full assignment blob. Callers hold the lock.
func (s *Store) persistAssignments(ctx context.Context) error {
	data, err := json.Marshal(s.assignments)
	if err != nil {
		return fmt.Errorf("failed to marshal manual assignments: %w", err)
	}
	return s.backend.Put(ctx, keyManualAssignments, string(data))
}
