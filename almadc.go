// Package almadc contains shared constants for the almadc tools, a small
// toolkit for batch curation of Dublin Core metadata in Alma-D bibliographic
// records.
package almadc

const (
	AppName = "almadc"
	Version = "0.2.1"
)
