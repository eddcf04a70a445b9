package journal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
)

func exportState(t *testing.T) models.AppState {
	r := testReducer()
	state := journalWithMonth(t, r)
	state = r.Reduce(state, AddTrade{Patch: TradePatch{Result: ptr(models.Win), PnLPercent: ptr(2.0)}})
	state = r.Reduce(state, AddTrade{Patch: TradePatch{Result: ptr(models.Loss), PnLPercent: ptr(1.0)}})
	state = r.Reduce(state, AddTrade{Patch: TradePatch{Result: ptr(models.Win), PnLPercent: ptr(1.0)}})
	state = r.Reduce(state, SetAPIKey{Key: "sk-secret"})
	return state
}

func TestExportStrategyJSON(t *testing.T) {
	data, err := ExportStrategy(exportState(t), "s1", FormatJSON)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")

	var got StrategyExport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "London open", got.Name)
	require.Len(t, got.Months, 1)
	assert.Equal(t, 3, got.Months[0].Summary.TotalTrades)
	assert.InDelta(t, 66.67, got.Months[0].Summary.WinRate, 0.01)
	assert.InDelta(t, 2.0, got.Overall.NetPnL, 1e-9)
}

func TestExportStrategyYAML(t *testing.T) {
	data, err := ExportStrategy(exportState(t), "s1", FormatYAML)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "London open", got["name"])
}

func TestExportUnknownStrategy(t *testing.T) {
	_, err := ExportStrategy(exportState(t), "nope", FormatJSON)
	assert.ErrorIs(t, err, jerrors.ErrInvalidState)
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseExportFormat("csv")
	assert.ErrorIs(t, err, jerrors.ErrInputValidation)
}
