package reporting

import (
	"fmt"
	"sort"
	"strings"

	"cl-rebalancer/internal/domain"
)

const timestampLayout = "02-01-2006 15:04:05"

// RenderTransactionsCSV renders ledger records as CSV string.
func RenderTransactionsCSV(r *TransactionsReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("id,timestamp,transactionType,chainId,txHash,successful,")
	sb.WriteString("inputTokenName,inputAmount,secondInputTokenName,secondInputAmount,")
	sb.WriteString("outputTokenName,outputAmount,secondOutputTokenName,secondOutputAmount,")
	sb.WriteString("gasFeeAmount,gasFeeTokenName,destinationAddress,error\n")

	// Rows
	for _, rec := range r.Records {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%t,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			rec.ID,
			rec.Timestamp.Format(timestampLayout),
			rec.Type,
			rec.ChainID,
			rec.TxHash,
			rec.Successful,
			rec.InputTokenName,
			rec.InputAmount.String(),
			rec.SecondInputTokenName,
			rec.SecondInputAmount.String(),
			rec.OutputTokenName,
			rec.OutputAmount.String(),
			rec.SecondOutputTokenName,
			rec.SecondOutputAmount.String(),
			rec.GasFeeAmount.String(),
			rec.GasFeeTokenName,
			rec.DestinationAddress,
			quoteField(rec.Error),
		))
	}

	return sb.String()
}

// RenderProfitCSV renders per-token net flows as CSV string.
func RenderProfitCSV(r *ProfitReport) string {
	var sb strings.Builder

	sb.WriteString("tokenName,inflow,outflow,gasSpent,net\n")
	for _, f := range r.Flows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s\n",
			f.TokenName,
			f.Inflow.String(),
			f.Outflow.String(),
			f.GasSpent.String(),
			f.Net.String(),
		))
	}

	return sb.String()
}

// RenderVolumeCSV renders per-type volumes as CSV string.
func RenderVolumeCSV(r *VolumeReport) string {
	var sb strings.Builder

	sb.WriteString("transactionType,tokenName,count,volume\n")
	for _, v := range r.Volumes {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s\n",
			v.Type,
			v.TokenName,
			v.Count,
			v.Volume.String(),
		))
	}

	return sb.String()
}

// RenderStatsCSV renders ledger stats as CSV string.
func RenderStatsCSV(r *StatsReport) string {
	var sb strings.Builder

	sb.WriteString("metric,value\n")
	sb.WriteString(fmt.Sprintf("total,%d\n", r.Stats.Total))
	sb.WriteString(fmt.Sprintf("successful,%d\n", r.Stats.Successful))
	sb.WriteString(fmt.Sprintf("failed,%d\n", r.Stats.Failed))
	for _, t := range sortedTypes(r.Stats.ByType) {
		sb.WriteString(fmt.Sprintf("type:%s,%d\n", t, r.Stats.ByType[t]))
	}
	if !r.Stats.First.IsZero() {
		sb.WriteString(fmt.Sprintf("first,%s\n", r.Stats.First.Format(timestampLayout)))
	}
	if !r.Stats.Last.IsZero() {
		sb.WriteString(fmt.Sprintf("last,%s\n", r.Stats.Last.Format(timestampLayout)))
	}

	return sb.String()
}

// sortedTypes returns the map keys in stable order.
func sortedTypes(byType map[domain.TxType]int64) []domain.TxType {
	out := make([]domain.TxType, 0, len(byType))
	for t := range byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// quoteField escapes a free-text field that may contain commas.
func quoteField(s string) string {
	if s == "" {
		return s
	}
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
