package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithTracesAndMetricsDisabledNoopsShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "policyd"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitBuildsExportersWithoutDialing(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "policyd",
		Environment: "test",
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		Traces:      true,
		Metrics:     true,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestParseHeadersSplitsPairs(t *testing.T) {
	headers := ParseHeaders("x-api-key=abc, x-tenant = acme ,malformed,")
	require.Equal(t, "abc", headers["x-api-key"])
	require.Equal(t, "acme", headers["x-tenant"])
	_, ok := headers["malformed"]
	require.False(t, ok)
}

func TestParseHeadersEmptyStringYieldsEmptyMap(t *testing.T) {
	headers := ParseHeaders("")
	require.Empty(t, headers)
}

func TestOperationAttributesOmitsDenyReasonWhenEmpty(t *testing.T) {
	attrs := OperationAttributes("verify", 42, 7, true, false, "")
	for _, a := range attrs {
		require.NotEqual(t, AttributeDenyReason, string(a.Key))
	}
}

func TestOperationAttributesIncludesDenyReasonWhenSet(t *testing.T) {
	attrs := OperationAttributes("verify", 42, 7, false, false, "invalid signature")
	found := false
	for _, a := range attrs {
		if string(a.Key) == AttributeDenyReason {
			found = true
			require.Equal(t, "invalid signature", a.Value.AsString())
		}
	}
	require.True(t, found)
}

func TestRecordOperationNoopsWithoutRecordingSpan(t *testing.T) {
	require.NotPanics(t, func() {
		RecordOperation(context.Background(), "mint", 10, 0, true, false, "")
	})
}
