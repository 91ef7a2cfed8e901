package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/tabstream/tabstream/pkg/config"
)

func TestApplyDelimiterQuoteOverridesOnlyGivenBytes(t *testing.T) {
	opts := config.DefaultCsvOptions()
	applyDelimiterQuote(&opts, "\t", "")
	assert.Equal(t, byte('\t'), opts.Delimiter)
	assert.Equal(t, byte('"'), opts.Quote)
}

func TestApplySheetSelectionPrefersName(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("sheet-index", 1, "")
	opts := config.DefaultXlsxOptions()

	applySheetSelection(&opts, cmd, 3, "Sheet2")
	assert.Equal(t, "Sheet2", opts.SheetName)
	assert.Equal(t, 0, opts.SheetIndex)
}

func TestApplySheetSelectionUsesIndexWhenChanged(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("sheet-index", 1, "")
	_ = cmd.Flags().Set("sheet-index", "2")
	opts := config.DefaultXlsxOptions()

	applySheetSelection(&opts, cmd, 2, "")
	assert.Equal(t, 2, opts.SheetIndex)
}
