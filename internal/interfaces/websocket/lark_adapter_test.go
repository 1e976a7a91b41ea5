package websocket

import (
	"testing"

	"github.com/garyjia/quote-revision/internal/infrastructure/external/lark"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLarkAdapter_StopBeforeStart(t *testing.T) {
	a := NewLarkAdapter(LarkAdapterConfig{AppID: "cli_test", AppSecret: "secret"}, lark.NewEventProcessor(nil, zap.NewNop()), zap.NewNop())

	assert.False(t, a.IsRunning())
	assert.NoError(t, a.Stop())
	assert.False(t, a.IsRunning())
}
