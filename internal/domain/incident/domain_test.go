package incident

import (
	"testing"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/stretchr/testify/assert"
)

func TestTransitionString(t *testing.T) {
	assert.Equal(t, "healthy → degraded", Transition{Kind: TransitionOpened, Status: health.StatusDegraded}.String())
	assert.Equal(t, "incident → healthy", Transition{Kind: TransitionResolved}.String())
}
