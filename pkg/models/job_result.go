package models

import (
	"time"

	"github.com/google/uuid"
)

// JobResult holds the artifacts and scores of one successful conformation.
// Rows are written once and removed only together with their Job.
type JobResult struct {
	ID                     uuid.UUID     `db:"id"                       json:"id"`
	JobUID                 uuid.UUID     `db:"job_uid"                  json:"-"`
	Seed                   int           `db:"seed"                     json:"seed"`
	TertiaryStructurePath  string        `db:"tertiary_structure_path"  json:"tertiary_structure"`
	SecondaryStructurePath string        `db:"secondary_structure_path" json:"secondary_structure"`
	SecondarySVGPath       string        `db:"secondary_svg_path"       json:"secondary_structure_svg"`
	ArcDiagramPath         string        `db:"arc_diagram_path"         json:"arc_diagram"`
	F1                     *float64      `db:"f1"                       json:"f1"`
	INF                    *float64      `db:"inf"                      json:"inf"`
	ProcessingTime         time.Duration `db:"processing_time"          json:"processing_time"`
	CompletedAt            time.Time     `db:"completed_at"             json:"completed_at"`
}

// Paths returns every non-empty artifact path of the result.
func (r *JobResult) Paths() []string {
	var paths []string
	for _, p := range []string{r.TertiaryStructurePath, r.SecondaryStructurePath, r.SecondarySVGPath, r.ArcDiagramPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
