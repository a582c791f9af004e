package types

import "time"

// User is an account that can sign in to the passport
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the single identity record per user, upserted on UserEmail
type Profile struct {
	UserEmail         string    `json:"user_email"`
	GlobalTier        string    `json:"global_tier"`
	SelectedCountries []string  `json:"selected_countries"`
	Summary           string    `json:"summary"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Rotation is one clinical placement
type Rotation struct {
	ID          string    `json:"id"`
	UserEmail   string    `json:"user_email"`
	Hospital    string    `json:"hospital"`
	Specialty   string    `json:"specialty"`
	Dates       string    `json:"dates"`
	Grade       string    `json:"grade"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Procedure levels
const (
	LevelObserved    = "Observed"
	LevelSupervised  = "Supervised"
	LevelIndependent = "Independent"
	LevelAssessor    = "Assessor"
)

// ProcedureLevels lists the allowed levels in order of increasing autonomy
var ProcedureLevels = []string{LevelObserved, LevelSupervised, LevelIndependent, LevelAssessor}

// Procedure is a logbook entry
type Procedure struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"user_email"`
	Procedure string    `json:"procedure"`
	Level     string    `json:"level"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is an audit, QIP, research or publication entry
type Project struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"user_email"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Role      string    `json:"role"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// VaultObject describes a stored document
type VaultObject struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category of a CV text block
type Category string

const (
	CategoryRegistration Category = "registration"
	CategoryProcedure    Category = "procedure"
	CategoryAcademic     Category = "academic"
	CategoryRotation     Category = "rotation"
)

// Categories in classification priority order
var Categories = []Category{CategoryRegistration, CategoryProcedure, CategoryAcademic, CategoryRotation}

// RotationCandidate is a rotation guessed from CV text, pending user import
type RotationCandidate struct {
	Hospital  string `json:"hospital"`
	Specialty string `json:"specialty"`
	Dates     string `json:"dates"`
	Grade     string `json:"grade"`
}

// ProcedureCandidate is a procedure guessed from CV text
type ProcedureCandidate struct {
	Procedure string `json:"procedure"`
	Level     string `json:"level,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// ProjectCandidate is an academic item guessed from CV text
type ProjectCandidate struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Role  string `json:"role,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// ChunkClassification is the structured output for one AI chunk
type ChunkClassification struct {
	Rotations     []RotationCandidate  `json:"rotations"`
	Procedures    []ProcedureCandidate `json:"procedures"`
	Projects      []ProjectCandidate   `json:"projects"`
	Registrations []string             `json:"registrations"`
}

// Segmentation maps each category to its blocks in document order
type Segmentation map[Category][]string

// ParseResult is what the form receives after uploading a CV
type ParseResult struct {
	Mode           string               `json:"mode"`
	Filename       string               `json:"filename,omitempty"`
	Characters     int                  `json:"characters"`
	Rotations      []RotationCandidate  `json:"rotations"`
	TotalRotations int                  `json:"total_rotations"`
	Procedures     []ProcedureCandidate `json:"procedures"`
	Projects       []ProjectCandidate   `json:"projects"`
	Registrations  []string             `json:"registrations"`
	Sections       Segmentation         `json:"sections"`
	Chunks         int                  `json:"chunks,omitempty"`
	Dropped        int                  `json:"dropped,omitempty"`
	Text           string               `json:"text,omitempty"` // Set only when no rotation was found
}

// Document is the plain text pulled out of an uploaded file
type Document struct {
	Filename   string `json:"filename"`
	MIMEType   string `json:"mime_type"`
	Text       string `json:"text"`
	Pages      int    `json:"pages,omitempty"`
	Paragraphs int    `json:"paragraphs,omitempty"`
	Words      int    `json:"words"`
	Characters int    `json:"characters"`
}
