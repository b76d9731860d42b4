package colorrule

import "github.com/fieldtables/fieldtables/pkg/types"

// Colors of the built-in status rules.
const (
	ColorBlack  = "#000000"
	ColorWhite  = "#FFFFFF"
	ColorGreen  = "#2E7D32"
	ColorAmber  = "#FFB300"
	ColorRed    = "#C62828"
	ColorPurple = "#6A1B9A"
	ColorGrey   = "#9E9E9E"
	ColorBlue   = "#1565C0"
)

var statusColors = map[string]ColorGuide{
	types.SyncStateNewRow:             {Foreground: ColorBlack, Background: ColorGreen},
	types.SyncStateChanged:            {Foreground: ColorBlack, Background: ColorAmber},
	types.SyncStateDeleted:            {Foreground: ColorWhite, Background: ColorRed},
	types.SyncStateInConflict:         {Foreground: ColorWhite, Background: ColorPurple},
	types.SyncStateSynced:             {Foreground: ColorBlack, Background: ColorWhite},
	types.SyncStateSyncedPendingFiles: {Foreground: ColorWhite, Background: ColorBlue},
}

// DefaultStatusRules returns one rule per sync state, keyed on sync_state.
func DefaultStatusRules() []Rule {
	states := types.SyncStates()
	rules := make([]Rule, 0, len(states))
	for _, state := range states {
		guide, ok := statusColors[state]
		if !ok {
			guide = ColorGuide{Foreground: ColorBlack, Background: ColorGrey}
		}
		rules = append(rules, Rule{
			ID:         "default_" + state,
			ElementKey: types.ColumnSyncState,
			Operator:   OpEqual,
			Value:      state,
			Foreground: guide.Foreground,
			Background: guide.Background,
		})
	}
	return rules
}
