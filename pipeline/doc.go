// Package pipeline turns the wide hourly air-quality CSV published by the
// Catalan monitoring network into long observations, calendar features,
// train/test partitions and aggregated series.
package pipeline
