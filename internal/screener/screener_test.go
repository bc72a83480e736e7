package screener

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"screening-agent-go/internal/condition"
	"screening-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConfigSource 返回固定的条件树
type fakeConfigSource struct {
	tree condition.Node
	err  error
}

func (f *fakeConfigSource) LoadConditionTree(ctx context.Context, configID string) (condition.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tree, nil
}

// fakeProfileSource 从内存map取候选人记录
type fakeProfileSource struct {
	records map[string]*types.CandidateRecord
}

func (f *fakeProfileSource) LoadCandidate(ctx context.Context, submissionUUID string) (*types.CandidateRecord, error) {
	record, ok := f.records[submissionUUID]
	if !ok {
		return nil, fmt.Errorf("候选人画像不存在: %s", submissionUUID)
	}
	return record, nil
}

// captureSink 记录所有持久化的结论
type captureSink struct {
	mu       sync.Mutex
	verdicts []*types.ScreeningVerdict
	err      error
}

func (c *captureSink) PersistVerdict(ctx context.Context, verdict *types.ScreeningVerdict) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts = append(c.verdicts, verdict)
	return nil
}

func seniorEngineerTree() condition.Node {
	return &condition.ConditionGroup{
		Operator: condition.LogicAnd,
		Conditions: []condition.Node{
			&condition.FilterCondition{Field: "education_level", Operator: condition.OpGte, Value: "bachelor"},
			&condition.FilterCondition{Field: "work_years", Operator: condition.OpGte, Value: 3},
		},
	}
}

func qualifiedRecord(uuid string) *types.CandidateRecord {
	return &types.CandidateRecord{
		SubmissionUUID: uuid,
		Facts: condition.Facts{
			"education_level": "master",
			"work_years":      5,
			"skills":          []interface{}{"Go", "Python"},
		},
		TextContent: "熟悉分布式系统与微服务架构",
	}
}

func unqualifiedRecord(uuid string) *types.CandidateRecord {
	return &types.CandidateRecord{
		SubmissionUUID: uuid,
		Facts: condition.Facts{
			"education_level": "college",
			"work_years":      1,
		},
	}
}

func TestScreenQualifiedCandidate(t *testing.T) {
	sink := &captureSink{}
	scr, err := NewScreener(
		&fakeConfigSource{tree: seniorEngineerTree()},
		&fakeProfileSource{records: map[string]*types.CandidateRecord{
			"sub-1": qualifiedRecord("sub-1"),
		}},
		WithOutcomeSink(sink))
	require.NoError(t, err)

	verdict, err := scr.Screen(context.Background(), "sub-1", "cfg-1")
	require.NoError(t, err)

	assert.True(t, verdict.Qualified)
	assert.Equal(t, "sub-1", verdict.SubmissionUUID)
	assert.Equal(t, "cfg-1", verdict.FilterConfigID)
	assert.Contains(t, verdict.Reason, "通过筛选")
	assert.Len(t, verdict.Outcomes, 2)
	assert.NotZero(t, verdict.EvaluatedAt)

	// 结论应已落地
	require.Len(t, sink.verdicts, 1)
	assert.Equal(t, verdict.SubmissionUUID, sink.verdicts[0].SubmissionUUID)
}

func TestScreenReasonListsFailedLeaves(t *testing.T) {
	scr, err := NewScreener(
		&fakeConfigSource{tree: seniorEngineerTree()},
		&fakeProfileSource{records: map[string]*types.CandidateRecord{
			"sub-2": unqualifiedRecord("sub-2"),
		}})
	require.NoError(t, err)

	verdict, err := scr.Screen(context.Background(), "sub-2", "cfg-1")
	require.NoError(t, err)

	assert.False(t, verdict.Qualified)
	assert.Contains(t, verdict.Reason, "未通过筛选")
	assert.Contains(t, verdict.Reason, "education_level")
	assert.Contains(t, verdict.Reason, "work_years")
}

func TestScreenConfigLoadFailure(t *testing.T) {
	scr, err := NewScreener(
		&fakeConfigSource{err: fmt.Errorf("配置不存在")},
		&fakeProfileSource{records: map[string]*types.CandidateRecord{}})
	require.NoError(t, err)

	_, err = scr.Screen(context.Background(), "sub-1", "cfg-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigLoadFailed)

	var scrErr *ScreeningError
	require.ErrorAs(t, err, &scrErr)
	assert.Equal(t, "load_config", scrErr.Op)
}

func TestScreenBadOperatorFailsFast(t *testing.T) {
	badTree := &condition.FilterCondition{Field: "work_years", Operator: "regex_match", Value: ".*"}
	scr, err := NewScreener(
		&fakeConfigSource{tree: badTree},
		&fakeProfileSource{records: map[string]*types.CandidateRecord{
			"sub-1": qualifiedRecord("sub-1"),
		}})
	require.NoError(t, err)

	_, err = scr.Screen(context.Background(), "sub-1", "cfg-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEvaluationFailed)
}

func TestScreenPersistFailure(t *testing.T) {
	sink := &captureSink{err: fmt.Errorf("数据库不可用")}
	scr, err := NewScreener(
		&fakeConfigSource{tree: seniorEngineerTree()},
		&fakeProfileSource{records: map[string]*types.CandidateRecord{
			"sub-1": qualifiedRecord("sub-1"),
		}},
		WithOutcomeSink(sink))
	require.NoError(t, err)

	_, err = scr.Screen(context.Background(), "sub-1", "cfg-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutcomePersistFailed)
}

func TestScreenBatchSummary(t *testing.T) {
	records := map[string]*types.CandidateRecord{
		"sub-1": qualifiedRecord("sub-1"),
		"sub-2": unqualifiedRecord("sub-2"),
		"sub-3": qualifiedRecord("sub-3"),
		// sub-4 缺失画像，计入Failed
	}

	sink := &captureSink{}
	scr, err := NewScreener(
		&fakeConfigSource{tree: seniorEngineerTree()},
		&fakeProfileSource{records: records},
		WithOutcomeSink(sink),
		WithWorkers(3))
	require.NoError(t, err)

	verdicts, summary, err := scr.ScreenBatch(context.Background(),
		[]string{"sub-1", "sub-2", "sub-3", "sub-4"}, "cfg-1")
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Qualified)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, verdicts, 3)
	assert.Len(t, sink.verdicts, 3)
}

func TestScreenBatchDeterministicVerdicts(t *testing.T) {
	records := map[string]*types.CandidateRecord{
		"sub-1": qualifiedRecord("sub-1"),
		"sub-2": unqualifiedRecord("sub-2"),
	}

	scr, err := NewScreener(
		&fakeConfigSource{tree: seniorEngineerTree()},
		&fakeProfileSource{records: records},
		WithWorkers(4))
	require.NoError(t, err)

	// 并发执行多轮，每个候选人的结论应始终一致
	for i := 0; i < 5; i++ {
		verdicts, _, err := scr.ScreenBatch(context.Background(), []string{"sub-1", "sub-2"}, "cfg-1")
		require.NoError(t, err)
		require.Len(t, verdicts, 2)
		for _, v := range verdicts {
			switch v.SubmissionUUID {
			case "sub-1":
				assert.True(t, v.Qualified)
			case "sub-2":
				assert.False(t, v.Qualified)
			}
		}
	}
}

func TestAssembleReason(t *testing.T) {
	outcomes := []condition.LeafOutcome{
		{Field: "education_level", Operator: condition.OpGte, Value: "bachelor", Matched: true},
		{Field: "work_years", Operator: condition.OpGte, Value: 3, Matched: false},
	}

	reason := assembleReason(false, outcomes)
	assert.Contains(t, reason, "未通过筛选")
	assert.Contains(t, reason, "work_years gte 3")
	assert.NotContains(t, reason, "education_level gte bachelor, work_years")

	reason = assembleReason(true, outcomes[:1])
	assert.Contains(t, reason, "通过筛选")
	assert.Contains(t, reason, "education_level gte bachelor")

	// 无叶子明细时只有整体结果
	assert.Equal(t, "通过筛选", assembleReason(true, nil))
	assert.Equal(t, "未通过筛选", assembleReason(false, nil))
}

func TestNewScreenerValidation(t *testing.T) {
	_, err := NewScreener(nil, &fakeProfileSource{})
	assert.Error(t, err)

	_, err = NewScreener(&fakeConfigSource{}, nil)
	assert.Error(t, err)
}
