// Package catalog defines the yacht catalog domain: records, list queries,
// pagination and the Store contract implemented by each backend.
package catalog

// Yacht is a catalog record. Scalar columns are nullable in the database and
// serialize as JSON null when absent.
type Yacht struct {
	ID                string   `json:"id" yaml:"id"`
	Name              *string  `json:"name" yaml:"name"`
	Builder           *string  `json:"builder" yaml:"builder"`
	Owner             *string  `json:"owner" yaml:"owner"`
	FormerOwner       *string  `json:"former_owner" yaml:"former_owner"`
	Flag              *string  `json:"flag" yaml:"flag"`
	YearBuilt         *int     `json:"year_built" yaml:"year_built"`
	RefitYear         *string  `json:"refit_year" yaml:"refit_year"`
	LengthM           *float64 `json:"length_m" yaml:"length_m"`
	BeamM             *float64 `json:"beam_m" yaml:"beam_m"`
	VolumeGT          *float64 `json:"volume_gt" yaml:"volume_gt"`
	CruisingSpeedKn   *float64 `json:"cruising_speed_kn" yaml:"cruising_speed_kn"`
	MaxSpeedKn        *float64 `json:"max_speed_kn" yaml:"max_speed_kn"`
	NavalArchitect    *string  `json:"naval_architect" yaml:"naval_architect"`
	ExteriorDesigner  *string  `json:"exterior_designer" yaml:"exterior_designer"`
	InteriorDesigner  *string  `json:"interior_designer" yaml:"interior_designer"`
	SaleInfo          *string  `json:"sale_info" yaml:"sale_info"`
	YachtPicture      *string  `json:"yacht_picture" yaml:"yacht_picture"`
	YachtPictures     []string `json:"yacht_pictures" yaml:"yacht_pictures"`
	InteriorPictures  []string `json:"interior_pictures" yaml:"interior_pictures"`
	DetailURL         *string  `json:"detail_url" yaml:"detail_url"`
	Price             *float64 `json:"price" yaml:"price"`
	AnnualRunningCost *float64 `json:"annual_running_cost" yaml:"annual_running_cost"`
}

// DisplayName returns the name or an empty string.
func (y Yacht) DisplayName() string {
	return deref(y.Name)
}

// BuilderName returns the builder or an empty string.
func (y Yacht) BuilderName() string {
	return deref(y.Builder)
}

// Pictures returns the exterior gallery, falling back to the single cover
// picture used by list rows.
func (y Yacht) Pictures() []string {
	if len(y.YachtPictures) > 0 {
		return y.YachtPictures
	}
	if p := deref(y.YachtPicture); p != "" {
		return []string{p}
	}
	return nil
}

// QuizEligible reports whether the record can appear in a quiz pool: it needs
// a name, a builder and at least one picture.
func (y Yacht) QuizEligible() bool {
	return y.Name != nil && y.Builder != nil && len(y.YachtPictures) > 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
