package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSample = BadRequest(40001, "时间冲突")

func TestAppError_WithDetailKeepsIdentity(t *testing.T) {
	err := errSample.WithDetail("周%d %s-%s", 1, "09:00", "10:00")

	assert.True(t, errors.Is(err, errSample))
	assert.Equal(t, "时间冲突: 周1 09:00-10:00", err.Error())
	assert.Empty(t, errSample.Detail, "哨兵不应被修改")

	// 二次派生仍指向原始哨兵
	again := err.WithDetail("other")
	assert.True(t, errors.Is(again, errSample))
}

func TestAppError_WrapAndKind(t *testing.T) {
	cause := fmt.Errorf("pq: deadlock detected")
	err := fmt.Errorf("register: %w", errSample.Wrap(cause))

	require.True(t, errors.Is(err, errSample))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindBadRequest, KindOf(err))

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, 40001, appErr.Code)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "forbidden", KindForbidden.String())
}

func TestAppError_DistinctSentinels(t *testing.T) {
	other := BadRequest(40001, "时间冲突")
	assert.False(t, errors.Is(errSample.WithDetail("x"), other))
}
