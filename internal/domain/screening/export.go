package screening

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExportFilename is the attachment name used for CSV downloads.
const ExportFilename = "presbyopia_patients_data.csv"

// CSVHeader is the fixed header row of the export.
var CSVHeader = []string{
	"ID", "Name", "Age", "Aadhaar ID", "Occupation", "Gender", "City", "Previous Glasses", "Diopter Strength",
}

// WriteCSV writes one row per record in the order given. Diopters carry a
// leading '+' and the glasses flag is Yes/No.
func WriteCSV(w io.Writer, records []PatientRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range records {
		glasses := "No"
		if p.PreviousGlasses {
			glasses = "Yes"
		}
		row := []string{
			strconv.Itoa(p.ID),
			p.Name,
			strconv.Itoa(p.Age),
			p.AadhaarID,
			p.Occupation,
			string(p.Gender),
			p.City,
			glasses,
			FormatDiopter(p.DiopterStrength),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatDiopter renders a diopter with an explicit plus sign and the
// shortest decimal form, e.g. "+2", "+1.25".
func FormatDiopter(d float64) string {
	return "+" + strconv.FormatFloat(d, 'f', -1, 64)
}

// ReadCSV parses an export produced by WriteCSV.
func ReadCSV(r io.Reader) ([]PatientRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range CSVHeader {
		if header[i] != h {
			return nil, fmt.Errorf("unexpected csv column %d: %q, want %q", i, header[i], h)
		}
	}

	records := []PatientRecord{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		p, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		records = append(records, p)
	}
	return records, nil
}

func parseRow(row []string) (PatientRecord, error) {
	var p PatientRecord
	var err error
	if p.ID, err = strconv.Atoi(row[0]); err != nil {
		return p, fmt.Errorf("id: %w", err)
	}
	p.Name = row[1]
	if p.Age, err = strconv.Atoi(row[2]); err != nil {
		return p, fmt.Errorf("age: %w", err)
	}
	p.AadhaarID = row[3]
	p.Occupation = row[4]
	p.Gender = Gender(row[5])
	p.City = row[6]
	switch row[7] {
	case "Yes":
		p.PreviousGlasses = true
	case "No":
	default:
		return p, fmt.Errorf("previous glasses: want Yes or No, got %q", row[7])
	}
	if p.DiopterStrength, err = strconv.ParseFloat(strings.TrimPrefix(row[8], "+"), 64); err != nil {
		return p, fmt.Errorf("diopter strength: %w", err)
	}
	return p, nil
}
