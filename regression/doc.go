// Package regression provides the forecasting models: a histogram-based
// gradient-boosting regressor with squared-error loss and an ordinary
// least squares baseline. Both satisfy Regressor.
package regression
