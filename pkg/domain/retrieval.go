package domain

import "fmt"

// DataType narrows a retrieval to one kind of content.
type DataType string

const (
	DataDefinition DataType = "Definition"
	DataParameter  DataType = "Parameter"
	DataEquation   DataType = "Equation"
	DataTable      DataType = "Table"
	DataProcess    DataType = "Process"
	DataProof      DataType = "Proof"
	DataOther      DataType = "Other"
)

// DataTypes lists the accepted data types.
var DataTypes = []DataType{DataDefinition, DataParameter, DataEquation, DataTable, DataProcess, DataProof, DataOther}

// Category is the thematic area a retrieval is scoped to.
type Category string

const (
	CategorySnowLoads Category = "DIN 1993-1-3"
	CategoryOther     Category = "Other"
)

// Categories lists the accepted categories.
var Categories = []Category{CategorySnowLoads, CategoryOther}

// RetrievalRequest is the wire contract of the retrieval backend.
// Empty DataType or Category means unfiltered.
type RetrievalRequest struct {
	Query    string   `json:"query" mapstructure:"query"`
	DataType DataType `json:"data_type" mapstructure:"data_type"`
	Category Category `json:"category" mapstructure:"category"`
}

// Validate enforces the enumerated filter values.
func (r RetrievalRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("retrieval query is empty")
	}
	if r.DataType != "" && !contains(DataTypes, r.DataType) {
		return fmt.Errorf("unknown data_type %q", r.DataType)
	}
	if r.Category != "" && !contains(Categories, r.Category) {
		return fmt.Errorf("unknown category %q", r.Category)
	}
	return nil
}

// Retrieval is the response of the retrieval backend.
type Retrieval struct {
	Text string `json:"retrieved information"`
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
