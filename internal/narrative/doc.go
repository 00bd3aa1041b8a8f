// Package narrative turns a positions snapshot into structured market
// commentary with a generative model. Calls go through a circuit breaker so
// a failing upstream is not hammered by every dashboard refresh.
package narrative
