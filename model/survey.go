package model

import "time"

// SurveyMeta identifies the survey a merged table belongs to.
type SurveyMeta struct {
	SurveyDate time.Time
	SiteCode   string
}

// MergedRow is one (cell, transect) record of the survey table.
//
// X and Y are the cell centre. Thickness is always defined; rows with
// undefined thickness never reach the table. MinDepth and MaxDepth are
// undefined for surveyed cells with no retained returns.
type MergedRow struct {
	X, Y          float64
	Col, Row      int
	TransectID    string
	Thickness     int
	MinDepth      Optional[float64]
	MaxDepth      Optional[float64]
	SeafloorDepth float64
	SurveyDate    time.Time
	SiteCode      string
}
