package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fieldtables/fieldtables/internal/app"
	"github.com/fieldtables/fieldtables/internal/colorrule"
	"github.com/fieldtables/fieldtables/internal/columns"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// tableFlags is the flag set shared by commands that act on one table.
type tableFlags struct {
	fs    *flag.FlagSet
	table string
}

func newTableFlags(name string) *tableFlags {
	tf := &tableFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	tf.fs.StringVar(&tf.table, "table", "", "Table id")
	return tf
}

func (tf *tableFlags) parse(args []string) error {
	if err := tf.fs.Parse(args); err != nil {
		return err
	}
	if tf.table == "" {
		return errors.New("-table is required")
	}
	return nil
}

// readColumnSpecs reads a list of column declarations from a YAML or JSON file.
func readColumnSpecs(path string) ([]columns.ColumnSpec, error) {
	if path == "" {
		return nil, errors.New("-columns is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column file: %w", err)
	}

	var specs []columns.ColumnSpec
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &specs)
	case ".json":
		err = json.Unmarshal(data, &specs)
	default:
		return nil, fmt.Errorf("unsupported column file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse column file: %w", err)
	}
	return specs, nil
}

func runTables(ctx context.Context, m *app.Manager, args []string) error {
	ids, err := m.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runCreate(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("create")
	file := tf.fs.String("columns", "", "YAML or JSON file of column declarations")
	if err := tf.parse(args); err != nil {
		return err
	}
	specs, err := readColumnSpecs(*file)
	if err != nil {
		return err
	}
	oc, err := m.CreateTable(ctx, tf.table, specs)
	if err != nil {
		return err
	}
	return printJSON(oc.DataModel())
}

func runAddColumns(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("add-columns")
	file := tf.fs.String("columns", "", "YAML or JSON file of column declarations")
	if err := tf.parse(args); err != nil {
		return err
	}
	specs, err := readColumnSpecs(*file)
	if err != nil {
		return err
	}
	oc, err := m.AddColumns(ctx, tf.table, specs)
	if err != nil {
		return err
	}
	return printJSON(oc.DataModel())
}

func runDescribe(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("describe")
	if err := tf.parse(args); err != nil {
		return err
	}
	tbl, err := m.Table(ctx, tf.table)
	if err != nil {
		return err
	}
	oc, err := m.OrderedColumns(ctx, tf.table)
	if err != nil {
		return err
	}
	order, err := m.ColumnOrder(ctx, tf.table)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"table":       tbl,
		"columnOrder": order,
		"dataModel":   oc.DataModel(),
	})
}

func runDrop(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("drop")
	if err := tf.parse(args); err != nil {
		return err
	}
	return m.DropTable(ctx, tf.table)
}

func runInsert(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("insert")
	rowJSON := tf.fs.String("row", "", "Row as a JSON object keyed by element key")
	if err := tf.parse(args); err != nil {
		return err
	}
	var row types.Row
	if err := json.Unmarshal([]byte(*rowJSON), &row); err != nil {
		return fmt.Errorf("invalid -row: %w", err)
	}
	stored, err := m.InsertRow(ctx, tf.table, row)
	if err != nil {
		return err
	}
	fmt.Println(stored.ID())
	return nil
}

// scopeFlags adds the flags naming one color rule group.
type scopeFlags struct {
	*tableFlags
	scope  string
	column string
}

func newScopeFlags(name, defaultScope string) *scopeFlags {
	sf := &scopeFlags{tableFlags: newTableFlags(name)}
	sf.fs.StringVar(&sf.scope, "scope", defaultScope, "Rule scope: COLUMN, TABLE, STATUS_COLUMN")
	sf.fs.StringVar(&sf.column, "column", "", "Element key of a COLUMN scope")
	return sf
}

func (sf *scopeFlags) group(ctx context.Context, m *app.Manager) (*colorrule.Group, error) {
	scope, err := colorrule.ParseScope(sf.scope)
	if err != nil {
		return nil, err
	}
	return m.ColorRuleGroup(ctx, sf.table, scope, sf.column)
}

type coloredRow struct {
	Row   types.Row             `json:"row"`
	Color *colorrule.ColorGuide `json:"color,omitempty"`
}

func runRows(ctx context.Context, m *app.Manager, args []string) error {
	sf := newScopeFlags("rows", colorrule.ScopeStatusColumn.String())
	if err := sf.parse(args); err != nil {
		return err
	}
	scope, err := colorrule.ParseScope(sf.scope)
	if err != nil {
		return err
	}
	rows, guides, err := m.RowColors(ctx, sf.table, scope, sf.column)
	if err != nil {
		return err
	}
	out := make([]coloredRow, len(rows))
	for i := range rows {
		out[i] = coloredRow{Row: rows[i], Color: guides[i]}
	}
	return printJSON(out)
}

func runPlaces(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("places")
	column := tf.fs.String("column", "", "Element key of a geopoint column")
	if err := tf.parse(args); err != nil {
		return err
	}
	marks, bound, err := m.Placemarks(ctx, tf.table, *column)
	if err != nil {
		return err
	}
	for _, pm := range marks {
		fmt.Printf("%s\t%f\t%f\n", pm.RowID, pm.Point.Lat(), pm.Point.Lon())
	}
	if len(marks) > 0 {
		fmt.Printf("bounds\t%f,%f\t%f,%f\n", bound.Min.Lat(), bound.Min.Lon(), bound.Max.Lat(), bound.Max.Lon())
	}
	return nil
}

func runRules(ctx context.Context, m *app.Manager, args []string) error {
	sf := newScopeFlags("rules", "")
	if err := sf.parse(args); err != nil {
		return err
	}
	g, err := sf.group(ctx, m)
	if err != nil {
		return err
	}
	for _, r := range g.Rules() {
		fmt.Printf("%s\t%s\tfg=%s bg=%s\n", r.ID, r, r.Foreground, r.Background)
	}
	if g.IsDefault() {
		fmt.Println("(built-in rules)")
	}
	return nil
}

func runAddRule(ctx context.Context, m *app.Manager, args []string) error {
	sf := newScopeFlags("add-rule", "")
	element := sf.fs.String("element", "", "Element key the rule tests")
	op := sf.fs.String("op", "EQUAL", "Operator name or symbol")
	value := sf.fs.String("value", "", "Value to compare against")
	fg := sf.fs.String("fg", colorrule.ColorBlack, "Foreground color")
	bg := sf.fs.String("bg", colorrule.ColorWhite, "Background color")
	if err := sf.parse(args); err != nil {
		return err
	}
	operator, err := colorrule.ParseOperator(*op)
	if err != nil {
		return err
	}
	g, err := sf.group(ctx, m)
	if err != nil {
		return err
	}
	r := g.Add(colorrule.Rule{
		ElementKey: *element,
		Operator:   operator,
		Value:      *value,
		Foreground: *fg,
		Background: *bg,
	})
	if err := m.SaveColorRuleGroup(ctx, g); err != nil {
		return err
	}
	fmt.Println(r.ID)
	return nil
}

func runRemoveRule(ctx context.Context, m *app.Manager, args []string) error {
	sf := newScopeFlags("remove-rule", "")
	id := sf.fs.String("id", "", "Rule id")
	if err := sf.parse(args); err != nil {
		return err
	}
	g, err := sf.group(ctx, m)
	if err != nil {
		return err
	}
	if err := g.Remove(*id); err != nil {
		return err
	}
	return m.SaveColorRuleGroup(ctx, g)
}

func runRestoreRules(ctx context.Context, m *app.Manager, args []string) error {
	sf := newScopeFlags("restore-rules", "")
	if err := sf.parse(args); err != nil {
		return err
	}
	g, err := sf.group(ctx, m)
	if err != nil {
		return err
	}
	g.RestoreDefaults()
	return m.SaveColorRuleGroup(ctx, g)
}

func runExport(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("export")
	if err := tf.parse(args); err != nil {
		return err
	}
	etag, err := m.ExportTable(ctx, tf.table)
	if err != nil {
		return err
	}
	fmt.Printf("exported %s (etag %s)\n", tf.table, etag)
	return nil
}

func runImport(ctx context.Context, m *app.Manager, args []string) error {
	tf := newTableFlags("import")
	if err := tf.parse(args); err != nil {
		return err
	}
	oc, err := m.ImportTable(ctx, tf.table)
	if err != nil {
		return err
	}
	fmt.Printf("imported %s (%d columns)\n", tf.table, oc.Len())
	return nil
}

func runArchived(ctx context.Context, m *app.Manager, args []string) error {
	ids, err := m.ArchivedTables(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
