package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func componentFields(entry observer.LoggedEntry) []string {
	var values []string
	for _, f := range entry.Context {
		if f.Key == "component" {
			values = append(values, f.String)
		}
	}
	return values
}

func TestNamedReplacesComponent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core, "api")

	log.Named("http").Named("billing").Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, []string{"billing"}, componentFields(logs.All()[0]))
}

func TestWithUserSurvivesNamed(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core, "api")

	log.WithUser(7).Named("account").Audit("signed in", "ip", "10.0.0.1")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, []string{"account"}, componentFields(entry))
	fields := entry.ContextMap()
	assert.Equal(t, int64(7), fields["user_id"])
	assert.Equal(t, true, fields["audit"])
	assert.Equal(t, "10.0.0.1", fields["ip"])
}
