// Package export renders the derived RPM table as downloadable reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/rpm"
	"github.com/vmihailenco/msgpack/v5"
)

// Title is the first line of every CSV report.
const Title = "Monitor de RPM SWM BRASIL - Engenharia e Confiabilidade"

// Header is the column header of the component table.
var Header = []string{"Grupo", "Posicao", "Tipo", "RPM Entrada", "RPM Calculado"}

// Report is the binary form of an export.
type Report struct {
	GeneratedAt time.Time                 `msgpack:"generatedAt" json:"generatedAt"`
	Params      models.TransmissionParams `msgpack:"params" json:"params"`
	Rows        []rpm.Row                 `msgpack:"rows" json:"rows"`
}

// FileName returns the download name of a CSV report generated at t.
func FileName(t time.Time) string {
	return "RPM_" + t.UTC().Format("2006-01-02T15:04:05.000Z07:00") + ".csv"
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the parameter block followed by one line per group and component.
func WriteCSV(w io.Writer, p models.TransmissionParams, rows []rpm.Row) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{Title},
		{"Parametros"},
		{"Rodete", number(p.Rodete)},
		{"Engr. Secador", number(p.EngrenagemSecador)},
		{"Soprador", number(p.Soprador)},
		{"Cilindro Guia", number(p.CilindroGuia)},
		{},
		Header,
	}
	for _, r := range rows {
		records = append(records, []string{r.GroupName, r.ComponentID, string(r.Type), number(r.EntryRPM), r.Display})
	}
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeMsgpack encodes a report.
func EncodeMsgpack(r Report) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return b, nil
}

// DecodeMsgpack decodes a report produced by EncodeMsgpack.
func DecodeMsgpack(b []byte) (Report, error) {
	var r Report
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
