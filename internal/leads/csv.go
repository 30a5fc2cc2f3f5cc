package leads

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// WriteCSV writes the header followed by one record per opportunity.
func (o *Opportunities) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, item := range o.Items {
		if err := cw.Write(item.CSVRecord()); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToCSVFile writes the collection to path, truncating any existing file.
func (o *Opportunities) ToCSVFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := o.WriteCSV(file); err != nil {
		return err
	}
	return file.Sync()
}
