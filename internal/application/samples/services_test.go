package samples

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/latentlab/proficiency/internal/application"
	corpusdom "github.com/latentlab/proficiency/internal/domain/corpus"
	"github.com/latentlab/proficiency/internal/domain/genlog"
	domain "github.com/latentlab/proficiency/internal/domain/samples"
	"github.com/latentlab/proficiency/internal/domain/tracking"
)

//
// ==== FAKES ====
//

type fakeLoader struct {
	rows []corpusdom.PairwiseComparison
	err  error
}

func (f *fakeLoader) Load(ctx context.Context) ([]corpusdom.PairwiseComparison, error) {
	return f.rows, f.err
}

type fakeUsage struct {
	names  map[string]bool // participant + "/" + name
	hashes map[string]bool // participant + "/" + hash
}

func newFakeUsage() *fakeUsage {
	return &fakeUsage{names: make(map[string]bool), hashes: make(map[string]bool)}
}

func (f *fakeUsage) Exists(ctx context.Context, participant, fileName string) (bool, error) {
	return f.names[participant+"/"+fileName], nil
}

func (f *fakeUsage) ListFileNames(ctx context.Context, participant string) ([]string, error) {
	var out []string
	prefix := participant + "/"
	for k := range f.names {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k[len(prefix):])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeUsage) Insert(ctx context.Context, u *tracking.FileUsage) error {
	if f.hashes[u.ParticipantID+"/"+u.ContentHash] {
		return tracking.ErrDuplicate
	}
	f.names[u.ParticipantID+"/"+u.FileName] = true
	f.hashes[u.ParticipantID+"/"+u.ContentHash] = true
	return nil
}

type fakeRepo struct {
	samples map[domain.SampleID]*domain.Sample
	groups  []*domain.SampleGroup
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{samples: make(map[domain.SampleID]*domain.Sample)}
}

func (f *fakeRepo) SaveSample(ctx context.Context, s *domain.Sample) error {
	cp := *s
	f.samples[s.ID] = &cp
	return nil
}

func (f *fakeRepo) SaveGroup(ctx context.Context, g *domain.SampleGroup) error {
	f.groups = append(f.groups, g)
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, participant string, id domain.SampleID) (*domain.Sample, error) {
	return f.samples[id], nil
}

func (f *fakeRepo) LatestByParticipant(ctx context.Context, participant string, limit int) ([]*domain.Sample, error) {
	var out []*domain.Sample
	for _, s := range f.samples {
		if s.ParticipantID == participant {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListGroups(ctx context.Context, id domain.SampleID) ([]*domain.SampleGroup, error) {
	var out []*domain.SampleGroup
	for _, g := range f.groups {
		if g.SampleID == id {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeAudit struct {
	events []*genlog.GenerationEvent
}

func (f *fakeAudit) Save(ctx context.Context, e *genlog.GenerationEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAudit) ListBySample(ctx context.Context, participant, sampleID string, limit int) ([]*genlog.GenerationEvent, error) {
	return f.events, nil
}

type fakePackager struct {
	packaged int
	failAt   int // 1-based group number to fail on, 0 = never
}

func (f *fakePackager) PackageGroup(carryCode, groupID string, g *domain.GroupCandidate) error {
	f.packaged++
	if f.failAt > 0 && f.packaged == f.failAt {
		return fmt.Errorf("%w: %s", domain.ErrAssetMissing, g.Questioned)
	}
	return nil
}

func (f *fakePackager) Archive(carryCode string) (string, error) {
	return "/tmp/" + carryCode + ".zip", nil
}

type fakeBundles struct{}

func (fakeBundles) Upload(ctx context.Context, localPath, key string) (string, error) {
	return "http://bundles/" + key, nil
}

func (fakeBundles) UploadAndCleanup(ctx context.Context, localPath, key string) (string, error) {
	return "http://bundles/" + key, nil
}

type fakeAssets struct{}

func (fakeAssets) Locate(name string) (string, error) { return "/pool/" + name, nil }

func (fakeAssets) Hash(name string) (string, error) {
	// distinct, stable hash per name stands in for file content
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:]), nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

//
// ==== CORPUS BUILDERS ====
//

func file(source, version int) string {
	return fmt.Sprintf("fingerprint_%04d_v%02d.png", source, version)
}

// syntheticCorpus gives every source a questioned file (v01) with two
// genuine partners and a different-source row against every other
// source's v01.
func syntheticCorpus(numSources int) []corpusdom.PairwiseComparison {
	var rows []corpusdom.PairwiseComparison
	for s := 1; s <= numSources; s++ {
		q := file(s, 1)
		rows = append(rows,
			corpusdom.PairwiseComparison{FileA: q, FileB: file(s, 2), SameSource: true, Score: 0.40 + float64(s)/1000},
			corpusdom.PairwiseComparison{FileA: q, FileB: file(s, 3), SameSource: true, Score: 0.90},
		)
		for o := 1; o <= numSources; o++ {
			if o == s {
				continue
			}
			rows = append(rows, corpusdom.PairwiseComparison{
				FileA: q, FileB: file(o, 1), Score: 0.10 + float64(o)/100,
			})
		}
	}
	return rows
}

func newService(rows []corpusdom.PairwiseComparison, p float64) (*Service, *fakeUsage, *fakeAudit) {
	usage := newFakeUsage()
	audit := &fakeAudit{}
	svc := &Service{
		Corpus:   &fakeLoader{rows: rows},
		Repo:     newFakeRepo(),
		Usage:    usage,
		Audit:    audit,
		Packager: &fakePackager{},
		Bundles:  fakeBundles{},
		Assets:   fakeAssets{},
		Clock:    fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		Rand:     application.NewSeededRand(42),
		Log:      zap.NewNop(),
		Opts:     Options{GroupsPerSample: 10, ImagesPerGroup: 11, HasMatchProbability: p},
	}
	return svc, usage, audit
}

func sourceOf(t *testing.T, name string) string {
	t.Helper()
	id, ok := corpusdom.SourceID(name)
	require.True(t, ok, "unresolvable source id for %s", name)
	return id
}

//
// ==== INVARIANTS ====
//

func TestGenerateSampleGroups_Invariants(t *testing.T) {
	svc, _, _ := newService(syntheticCorpus(30), 0.5)

	groups, err := svc.GenerateSampleGroups(context.Background(), 10, "p-1")
	require.NoError(t, err)
	require.NotEmpty(t, groups)

	for _, g := range groups {
		assert.Len(t, g.Standards, 10)
		assert.NotContains(t, g.Standards, g.Questioned)

		qid := sourceOf(t, g.Questioned)
		seen := map[string]int{}
		for _, s := range g.Standards {
			seen[sourceOf(t, s)]++
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "identity %s repeated within a group", id)
		}

		if g.HasMatch {
			require.GreaterOrEqual(t, g.MatchedIndex, 0)
			require.Less(t, g.MatchedIndex, len(g.Standards))
			assert.Equal(t, qid, sourceOf(t, g.Standards[g.MatchedIndex]))
			assert.Equal(t, 1, seen[qid], "exactly one standard shares the questioned identity")
		} else {
			assert.Equal(t, domain.NoMatch, g.MatchedIndex)
			assert.Zero(t, seen[qid], "no standard may share the questioned identity")
		}
	}
}

func TestGenerateSampleGroups_RecordsUsageOnce(t *testing.T) {
	svc, usage, _ := newService(syntheticCorpus(30), 1.0)

	groups, err := svc.GenerateSampleGroups(context.Background(), 5, "p-1")
	require.NoError(t, err)
	require.NotEmpty(t, groups)

	for _, g := range groups {
		used, err := svc.HasBeenUsed(context.Background(), "p-1", g.Questioned)
		require.NoError(t, err)
		assert.True(t, used, "questioned %s not tracked", g.Questioned)
		for _, s := range g.Standards {
			used, err := svc.HasBeenUsed(context.Background(), "p-1", s)
			require.NoError(t, err)
			assert.True(t, used, "standard %s not tracked", s)
		}
	}

	// other participants are unaffected
	other, err := usage.ListFileNames(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGenerateSampleGroups_NoRepeatAcrossSamples(t *testing.T) {
	svc, _, _ := newService(syntheticCorpus(40), 1.0)

	first, err := svc.GenerateSampleGroups(context.Background(), 3, "p-1")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	consumed := map[string]bool{}
	for _, g := range first {
		consumed[g.Questioned] = true
		for _, s := range g.Standards {
			consumed[s] = true
		}
	}

	second, err := svc.GenerateSampleGroups(context.Background(), 3, "p-1")
	require.NoError(t, err)
	for _, g := range second {
		assert.False(t, consumed[g.Questioned], "questioned %s reused", g.Questioned)
		for _, s := range g.Standards {
			assert.False(t, consumed[s], "standard %s reused", s)
		}
	}
}

//
// ==== SCENARIOS ====
//

// The weakest genuine pairing must be chosen as the matched standard.
func TestGenerateGroup_PicksWeakestGenuinePairing(t *testing.T) {
	q := file(1, 1)
	weak := file(1, 2)   // score 0.40
	strong := file(1, 3) // score 0.90
	rows := []corpusdom.PairwiseComparison{
		{FileA: q, FileB: weak, SameSource: true, Score: 0.40},
		{FileA: q, FileB: strong, SameSource: true, Score: 0.90},
	}
	for o := 2; o <= 10; o++ {
		rows = append(rows, corpusdom.PairwiseComparison{FileA: q, FileB: file(o, 1), Score: 0.2})
	}

	svc, _, _ := newService(rows, 1.0)

	groups, err := svc.GenerateSampleGroups(context.Background(), 1, "p-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	require.True(t, g.HasMatch)
	assert.Equal(t, weak, g.Standards[g.MatchedIndex])
	assert.NotContains(t, g.Standards, strong)
}

// A questioned file with too few eligible distractors fails its group.
func TestGenerateGroup_InsufficientDistractors(t *testing.T) {
	q := file(1, 1)
	rows := []corpusdom.PairwiseComparison{
		{FileA: q, FileB: file(1, 2), SameSource: true, Score: 0.5},
	}
	for o := 2; o <= 4; o++ { // only 3 different-source candidates, need 9
		rows = append(rows, corpusdom.PairwiseComparison{FileA: q, FileB: file(o, 1), Score: 0.3})
	}

	svc, _, audit := newService(rows, 1.0)

	groups, err := svc.GenerateSampleGroups(context.Background(), 2, "p-1")
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Len(t, audit.events, 2, "every dropped group is audited")
}

// A previously consumed file is never selected as questioned again.
func TestGenerateSampleGroups_FiltersUsedQuestioned(t *testing.T) {
	svc, usage, _ := newService(syntheticCorpus(30), 1.0)
	burned := file(1, 1)
	require.NoError(t, usage.Insert(context.Background(), &tracking.FileUsage{
		ParticipantID: "p-1", FileName: burned, ContentHash: "pre-existing",
	}))

	for trial := 0; trial < 20; trial++ {
		groups, err := svc.GenerateSampleGroups(context.Background(), 1, "p-1")
		require.NoError(t, err)
		for _, g := range groups {
			assert.NotEqual(t, burned, g.Questioned)
		}
	}
}

// With p = 1.0 every successful group embeds a genuine pairing.
func TestGenerateSampleGroups_AlwaysMatchWhenForced(t *testing.T) {
	svc, _, _ := newService(syntheticCorpus(60), 1.0)

	var total int
	for trial := 0; trial < 10; trial++ {
		groups, err := svc.GenerateSampleGroups(context.Background(), 3, fmt.Sprintf("p-%d", trial))
		require.NoError(t, err)
		for _, g := range groups {
			total++
			assert.True(t, g.HasMatch)
		}
	}
	assert.Positive(t, total)
}

//
// ==== EDGE POLICY ====
//

func TestGenerateSampleGroups_EmptyCorpus(t *testing.T) {
	svc, _, _ := newService(nil, 1.0)

	_, err := svc.GenerateSampleGroups(context.Background(), 10, "p-1")
	assert.ErrorIs(t, err, domain.ErrCorpusUnavailable)
}

func TestGenerateSampleGroups_CorpusLoadErrorIsNotFatalByItself(t *testing.T) {
	svc, _, _ := newService(nil, 1.0)
	svc.Corpus = &fakeLoader{err: fmt.Errorf("disk gone")}

	_, err := svc.GenerateSampleGroups(context.Background(), 10, "p-1")
	assert.ErrorIs(t, err, domain.ErrCorpusUnavailable)
}

func TestGenerateSampleGroups_ExhaustedPool(t *testing.T) {
	rows := syntheticCorpus(12)
	svc, usage, _ := newService(rows, 1.0)
	for s := 1; s <= 12; s++ {
		require.NoError(t, usage.Insert(context.Background(), &tracking.FileUsage{
			ParticipantID: "p-1", FileName: file(s, 1), ContentHash: fmt.Sprintf("h%d", s),
		}))
	}

	groups, err := svc.GenerateSampleGroups(context.Background(), 2, "p-1")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestRecordUsage_DuplicateHashFailsHard(t *testing.T) {
	svc, usage, _ := newService(syntheticCorpus(30), 1.0)

	// another writer already recorded the same content for this participant
	for s := 1; s <= 30; s++ {
		for v := 1; v <= 3; v++ {
			name := file(s, v)
			hash, _ := fakeAssets{}.Hash(name)
			usage.hashes["p-1/"+hash] = true
		}
	}

	_, err := svc.GenerateSampleGroups(context.Background(), 1, "p-1")
	assert.ErrorIs(t, err, domain.ErrUsageConflict)
}

func TestFilterUnused(t *testing.T) {
	svc, usage, _ := newService(nil, 1.0)
	require.NoError(t, usage.Insert(context.Background(), &tracking.FileUsage{
		ParticipantID: "p-1", FileName: "a.png", ContentHash: "h1",
	}))

	out, err := svc.FilterUnused(context.Background(), "p-1", []string{"a.png", "b.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png"}, out)
}

//
// ==== FULL PIPELINE ====
//

func TestCreateSample_Succeeds(t *testing.T) {
	svc, _, _ := newService(syntheticCorpus(30), 0.85)
	repo := svc.Repo.(*fakeRepo)
	pack := svc.Packager.(*fakePackager)

	sample, err := svc.CreateSample(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReady, sample.Status)
	assert.Equal(t, "p-1", sample.ParticipantID)
	assert.NotEmpty(t, sample.CarryCode)
	assert.Contains(t, sample.BundleURL, sample.CarryCode)
	assert.Equal(t, sample.GroupCount, pack.packaged)

	stored := repo.samples[sample.ID]
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusReady, stored.Status)

	groups, err := svc.Groups(context.Background(), sample.ID)
	require.NoError(t, err)
	assert.Len(t, groups, sample.GroupCount)
	for i, g := range groups {
		assert.Equal(t, i+1, g.GroupNo)
		assert.Len(t, g.Standards, 10)
	}
}

func TestCreateSample_PackagingFailureMarksFailed(t *testing.T) {
	svc, _, audit := newService(syntheticCorpus(30), 0.85)
	svc.Packager = &fakePackager{failAt: 2}
	repo := svc.Repo.(*fakeRepo)

	_, err := svc.CreateSample(context.Background(), "p-1")
	require.ErrorIs(t, err, domain.ErrAssetMissing)

	var failed *domain.Sample
	for _, s := range repo.samples {
		failed = s
	}
	require.NotNil(t, failed)
	assert.Equal(t, domain.StatusFailed, failed.Status)

	var packagePhase bool
	for _, e := range audit.events {
		if e.Phase == "package" {
			packagePhase = true
		}
	}
	assert.True(t, packagePhase, "packaging abort must be audited")
}

func TestCreateSample_NoGroupsIsFailure(t *testing.T) {
	// corpus without any genuine pairing and p forced to 1
	q := file(1, 1)
	var rows []corpusdom.PairwiseComparison
	for o := 2; o <= 15; o++ {
		rows = append(rows, corpusdom.PairwiseComparison{FileA: q, FileB: file(o, 1), Score: 0.3})
	}
	svc, _, _ := newService(rows, 1.0)

	_, err := svc.CreateSample(context.Background(), "p-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientCandidates)
}
