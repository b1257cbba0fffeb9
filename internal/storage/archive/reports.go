package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReportRoot is the prefix under which run reports are stored.
const ReportRoot = "runs"

// ReportKey returns runs/YYYY/MM/DD/<run-id>.json for a run started at at.
func ReportKey(runID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", ReportRoot, at.UTC().Format("2006/01/02"), runID)
}

// PutJSON marshals v and writes it at key.
func PutJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Write(ctx, key, data)
}

// GetJSON reads key and unmarshals it into v.
func GetJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// ListReports returns every stored report key, oldest day first.
func ListReports(ctx context.Context, s Storage) ([]string, error) {
	keys, err := s.List(ctx, ReportRoot)
	if err != nil {
		return nil, err
	}
	reports := keys[:0]
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			reports = append(reports, k)
		}
	}
	return reports, nil
}
