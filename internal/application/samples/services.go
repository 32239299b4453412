package samples

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/latentlab/proficiency/internal/application"
	corpusdom "github.com/latentlab/proficiency/internal/domain/corpus"
	"github.com/latentlab/proficiency/internal/domain/genlog"
	domain "github.com/latentlab/proficiency/internal/domain/samples"
	"github.com/latentlab/proficiency/internal/domain/tracking"
)

// Options are the tunables of the selection algorithm.
type Options struct {
	GroupsPerSample     int     // groups per generated sample
	ImagesPerGroup      int     // questioned + standards
	HasMatchProbability float64 // Bernoulli p for embedding a genuine pairing
}

func (o Options) standardsPerGroup() int { return o.ImagesPerGroup - 1 }

// Service implements the sample-generation use-cases: pick questioned and
// standard images per group, degrade and package them, and keep the
// per-participant no-repeat invariant. Generation is a synchronous,
// per-participant batch operation; it is not meant to run concurrently
// for the same participant, the store's uniqueness constraint is the
// backstop if it does.
type Service struct {
	Corpus   corpusdom.Loader
	Repo     domain.Repository
	Usage    tracking.Repository
	Audit    genlog.Repository
	Packager domain.Packager
	Bundles  domain.BundleStore
	Assets   domain.AssetLocator
	Clock    application.Clock
	Rand     application.Rand
	Log      *zap.Logger
	Opts     Options
}

//
// ==== USE CASES ====
//

// CreateSample runs the whole pipeline for one participant: select the
// groups, write the per-group directories, archive and upload the bundle,
// persist the sample. Failed individual groups are dropped; corpus-level
// and asset-level failures abort the request. Already-written group
// directories are left in place on abort, there is no rollback.
func (s *Service) CreateSample(ctx context.Context, participantID string) (*domain.Sample, error) {
	id := domain.SampleID(uuid.New().String())
	carry := carryCode()

	groups, err := s.GenerateSampleGroups(ctx, s.Opts.GroupsPerSample, participantID)
	if err != nil {
		s.audit(ctx, participantID, string(id), "select", err, nil)
		return nil, err
	}
	if len(groups) == 0 {
		err := fmt.Errorf("%w: no group satisfied the constraints", domain.ErrInsufficientCandidates)
		s.audit(ctx, participantID, string(id), "select", err, nil)
		return nil, err
	}

	sample := &domain.Sample{
		ID:            id,
		ParticipantID: participantID,
		CarryCode:     carry,
		GroupCount:    len(groups),
		Status:        domain.StatusGenerating,
		CreatedAt:     s.Clock.Now(),
	}
	if err := s.Repo.SaveSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("saving sample: %w", err)
	}

	for i, g := range groups {
		groupID := fmt.Sprintf("%02d", i+1)
		if err := s.Packager.PackageGroup(carry, groupID, g); err != nil {
			s.fail(ctx, sample)
			s.audit(ctx, participantID, string(id), "package", err, map[string]any{"group": groupID})
			return nil, err
		}
		row := &domain.SampleGroup{
			SampleID:     id,
			GroupNo:      i + 1,
			Questioned:   g.Questioned,
			HasMatch:     g.HasMatch,
			MatchedIndex: g.MatchedIndex,
			Standards:    g.Standards,
		}
		if err := s.Repo.SaveGroup(ctx, row); err != nil {
			s.fail(ctx, sample)
			return nil, fmt.Errorf("saving group %s: %w", groupID, err)
		}
	}

	zipPath, err := s.Packager.Archive(carry)
	if err != nil {
		s.fail(ctx, sample)
		s.audit(ctx, participantID, string(id), "archive", err, nil)
		return nil, err
	}
	url, err := s.Bundles.UploadAndCleanup(ctx, zipPath, fmt.Sprintf("%s/%s.zip", participantID, carry))
	if err != nil {
		s.fail(ctx, sample)
		s.audit(ctx, participantID, string(id), "archive", err, nil)
		return nil, err
	}

	sample.Status = domain.StatusReady
	sample.BundleURL = url
	if err := s.Repo.SaveSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("saving sample: %w", err)
	}

	s.Log.Info("sample created",
		zap.String("participant", participantID),
		zap.String("sample", string(id)),
		zap.String("carry_code", carry),
		zap.Int("groups", len(groups)))
	return sample, nil
}

// GenerateSampleGroups produces up to numGroups group candidates for the
// participant and records usage for every filename the successful groups
// consumed, once, after the whole batch. Callers may receive fewer groups
// than requested; zero successful groups with a healthy corpus is
// reported as an empty slice and left to the caller's policy.
func (s *Service) GenerateSampleGroups(ctx context.Context, numGroups int, participantID string) ([]*domain.GroupCandidate, error) {
	if numGroups <= 0 {
		numGroups = s.Opts.GroupsPerSample
	}

	rows, err := s.Corpus.Load(ctx)
	if err != nil {
		s.Log.Warn("corpus load failed", zap.Error(err))
		rows = nil
	}
	if len(rows) == 0 {
		return nil, domain.ErrCorpusUnavailable
	}

	usedNames, err := s.Usage.ListFileNames(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("loading usage history: %w", err)
	}
	used := make(map[string]bool, len(usedNames))
	for _, n := range usedNames {
		used[n] = true
	}

	idx := indexCorpus(rows)

	var groups []*domain.GroupCandidate
	consumed := make(map[string]bool)
	for i := 0; i < numGroups; i++ {
		g, err := s.generateGroup(idx, used)
		if err != nil {
			s.Log.Info("group dropped",
				zap.String("participant", participantID),
				zap.Int("slot", i),
				zap.Error(err))
			s.audit(ctx, participantID, "", "select", err, map[string]any{"slot": i})
			continue
		}
		groups = append(groups, g)
		consumed[g.Questioned] = true
		for _, f := range g.Standards {
			consumed[f] = true
		}
	}

	if len(groups) > 0 {
		if err := s.recordUsage(ctx, participantID, consumed); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// generateGroup makes one draw. Any constraint it cannot satisfy fails
// the whole group; no partial group is emitted.
func (s *Service) generateGroup(idx *corpusIndex, used map[string]bool) (*domain.GroupCandidate, error) {
	n := s.Opts.standardsPerGroup()

	pool := make([]string, 0, len(idx.questioned))
	for _, q := range idx.questioned {
		if !used[q] {
			pool = append(pool, q)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: questioned pool exhausted", domain.ErrInsufficientCandidates)
	}

	q := pool[s.Rand.Intn(len(pool))]
	records := idx.byQuestioned[q]
	hasMatch := s.Rand.Float64() < s.Opts.HasMatchProbability

	// Identities already present in the group; distractors must not
	// collide with any of them.
	seen := make(map[string]bool)
	if qid, ok := corpusdom.SourceID(q); ok {
		seen[qid] = true
	}

	var matched string
	if hasMatch {
		// The weakest genuine pairing is the hardest true match to
		// confirm, so take the minimum score.
		best := math.Inf(1)
		for _, r := range records {
			if r.SameSource && !r.SameFile && r.FileB != q && !used[r.FileB] && r.Score < best {
				best = r.Score
				matched = r.FileB
			}
		}
		if matched == "" {
			return nil, fmt.Errorf("%w: no genuine pairing for %s", domain.ErrInsufficientCandidates, q)
		}
		if mid, ok := corpusdom.SourceID(matched); ok {
			seen[mid] = true
		}
	}

	want := n
	if hasMatch {
		want = n - 1
	}
	distractors := s.pickDistractors(records, q, used, seen, want)
	if len(distractors) < want {
		return nil, fmt.Errorf("%w: %d of %d distractors for %s",
			domain.ErrInsufficientCandidates, len(distractors), want, q)
	}

	standards := distractors
	mi := domain.NoMatch
	if hasMatch {
		standards = append([]string{matched}, distractors...)
		mi = 0
	}
	s.Rand.Shuffle(len(standards), func(i, j int) {
		standards[i], standards[j] = standards[j], standards[i]
		switch mi {
		case i:
			mi = j
		case j:
			mi = i
		}
	})

	return &domain.GroupCandidate{
		Questioned:   q,
		Standards:    standards,
		HasMatch:     hasMatch,
		MatchedIndex: mi,
	}, nil
}

// pickDistractors walks the questioned file's different-source records
// from highest score down (most confusable non-matches first) and
// greedily keeps files the participant has not seen and whose source
// identity has not appeared in the group yet. Files without a resolvable
// identity cannot prove distinctness and are skipped.
func (s *Service) pickDistractors(records []corpusdom.PairwiseComparison, questioned string, used, seen map[string]bool, want int) []string {
	cands := make([]corpusdom.PairwiseComparison, 0, len(records))
	for _, r := range records {
		if !r.SameSource {
			cands = append(cands, r)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })

	var out []string
	for _, r := range cands {
		if len(out) == want {
			break
		}
		if r.FileB == questioned || used[r.FileB] {
			continue
		}
		id, ok := corpusdom.SourceID(r.FileB)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r.FileB)
	}
	return out
}

//
// ==== FILE USAGE TRACKING ====
//

// HasBeenUsed checks membership by file name within the participant's
// scope. The content hash is an audit field, not a membership key.
func (s *Service) HasBeenUsed(ctx context.Context, participantID, fileName string) (bool, error) {
	return s.Usage.Exists(ctx, participantID, fileName)
}

// FilterUnused removes file names the participant has already been shown.
func (s *Service) FilterUnused(ctx context.Context, participantID string, names []string) ([]string, error) {
	usedNames, err := s.Usage.ListFileNames(ctx, participantID)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool, len(usedNames))
	for _, n := range usedNames {
		used[n] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !used[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// recordUsage hashes and inserts every not-yet-tracked name. A missing
// file is fatal for the batch. A duplicate-key rejection from the store
// means a concurrent writer got there first and fails the batch hard.
func (s *Service) recordUsage(ctx context.Context, participantID string, names map[string]bool) error {
	ordered := make([]string, 0, len(names))
	for n := range names {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)

	now := s.Clock.Now()
	for _, name := range ordered {
		tracked, err := s.Usage.Exists(ctx, participantID, name)
		if err != nil {
			return fmt.Errorf("checking usage for %s: %w", name, err)
		}
		if tracked {
			continue
		}
		hash, err := s.Assets.Hash(name)
		if err != nil {
			return err
		}
		u := &tracking.FileUsage{
			ParticipantID: participantID,
			FileName:      name,
			ContentHash:   hash,
			UsedAt:        now,
		}
		if err := s.Usage.Insert(ctx, u); err != nil {
			if errors.Is(err, tracking.ErrDuplicate) {
				return fmt.Errorf("%w: %s for participant %s", domain.ErrUsageConflict, name, participantID)
			}
			return fmt.Errorf("recording usage for %s: %w", name, err)
		}
	}
	return nil
}

//
// ==== QUERIES ====
//

// Latest returns the participant's most recent samples.
func (s *Service) Latest(ctx context.Context, participant string, limit int) ([]*domain.Sample, error) {
	return s.Repo.LatestByParticipant(ctx, participant, limit)
}

// Get returns one sample by id.
func (s *Service) Get(ctx context.Context, participant string, id domain.SampleID) (*domain.Sample, error) {
	return s.Repo.Get(ctx, participant, id)
}

// Groups returns the persisted groups of a sample.
func (s *Service) Groups(ctx context.Context, id domain.SampleID) ([]*domain.SampleGroup, error) {
	return s.Repo.ListGroups(ctx, id)
}

// AuditTrail returns the generation events recorded for a sample.
func (s *Service) AuditTrail(ctx context.Context, participant, sampleID string, limit int) ([]*genlog.GenerationEvent, error) {
	return s.Audit.ListBySample(ctx, participant, sampleID, limit)
}

//
// ==== HELPERS ====
//

type corpusIndex struct {
	questioned   []string // distinct first-column files, first-appearance order
	byQuestioned map[string][]corpusdom.PairwiseComparison
}

func indexCorpus(rows []corpusdom.PairwiseComparison) *corpusIndex {
	idx := &corpusIndex{byQuestioned: make(map[string][]corpusdom.PairwiseComparison)}
	for _, r := range rows {
		if _, ok := idx.byQuestioned[r.FileA]; !ok {
			idx.questioned = append(idx.questioned, r.FileA)
		}
		idx.byQuestioned[r.FileA] = append(idx.byQuestioned[r.FileA], r)
	}
	return idx
}

func (s *Service) fail(ctx context.Context, sample *domain.Sample) {
	sample.Status = domain.StatusFailed
	if err := s.Repo.SaveSample(ctx, sample); err != nil {
		s.Log.Warn("marking sample failed", zap.String("sample", string(sample.ID)), zap.Error(err))
	}
}

func (s *Service) audit(ctx context.Context, participant, sampleID, phase string, cause error, details map[string]any) {
	if s.Audit == nil {
		return
	}
	e := &genlog.GenerationEvent{
		ParticipantID: participant,
		SampleID:      sampleID,
		Phase:         phase,
		Reason:        cause.Error(),
		CreatedAt:     s.Clock.Now(),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			e.DetailsJSON = string(b)
		}
	}
	if err := s.Audit.Save(ctx, e); err != nil {
		s.Log.Warn("audit save failed", zap.Error(err))
	}
}

func carryCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
