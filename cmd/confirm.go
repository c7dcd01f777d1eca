package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"finnsync/models"
	"finnsync/sheets"
	"finnsync/workers"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tcnksm/go-input"
)

// prompter is the terminal side of the confirmation callbacks: it prints
// what is about to happen and asks for a yes.
type prompter struct {
	ui  *input.UI
	out io.Writer
}

func newPrompter() *prompter {
	return &prompter{ui: input.DefaultUI(), out: os.Stdout}
}

func (p *prompter) ask(question string) bool {
	answer, err := p.ui.Ask(question+" [y/N]", &input.Options{
		Default:      "n",
		HideDefault:  true,
		HideOrder:    true,
		Loop:         true,
		ValidateFunc: validateYesNo,
	})
	if err != nil {
		return false
	}
	return isYes(answer)
}

func validateYesNo(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "n", "no", "":
		return nil
	}
	return fmt.Errorf("answer y or n")
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes"
}

// ConfirmEnrichment shows how many listings miss each commute attribute and
// asks before spending routing quota.
func (p *prompter) ConfirmEnrichment(plan *workers.CommutePlan) bool {
	t := newTable(p.out)
	t.SetTitle("Commute enrichment")
	t.AppendHeader(table.Row{"Attribute", "Missing"})
	for _, attr := range models.CommuteAttributes {
		if n := plan.Missing[attr.Column]; n > 0 {
			t.AppendRow(table.Row{attr.Column, n})
		}
	}
	t.AppendFooter(table.Row{"Listings", len(plan.Candidates)})
	t.AppendFooter(table.Row{"Calls", plan.Calls})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()

	return p.ask(fmt.Sprintf("Make %d routing calls?", plan.Calls))
}

// ConfirmSheetChanges prints the full before/after diff of cells that
// would overwrite a non-empty value.
func (p *prompter) ConfirmSheetChanges(changes []sheets.CellChange) bool {
	t := newTable(p.out)
	t.SetTitle("Changes overwriting existing values")
	t.AppendHeader(table.Row{"Cell", "Finnkode", "Column", "Old", "New"})
	for _, c := range changes {
		t.AppendRow(table.Row{c.Range(), c.Key, c.Column, c.Old, c.New})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Old", Colors: text.Colors{text.FgRed}},
		{Name: "New", Colors: text.Colors{text.FgGreen}},
	})
	t.Render()

	return p.ask(fmt.Sprintf("Apply %d overwrites?", len(changes)))
}

// enrichConfirm picks the enrichment callback: auto-approve when yes or
// COMMUTE_AUTO_CONFIRM is set, otherwise a prompt.
func enrichConfirm(yes bool) workers.ConfirmFunc {
	if yes || env.cfg.Commute.AutoConfirm {
		return workers.AutoApprove
	}
	return newPrompter().ConfirmEnrichment
}

func sheetConfirm(yes bool) sheets.ConfirmFunc {
	if yes {
		return sheets.AutoApprove
	}
	return newPrompter().ConfirmSheetChanges
}
