// Package aggregator reassembles per-element outcomes into one ordered result.
//
// Every dispatched element owns a pre-reserved slot addressed by its 1-based
// index, so completion order never affects output order. Rendering refuses
// to produce output while any slot is failed or empty.
//
// Default output:
//
//	<results count="2">
//	<result item="1">
//	...
//	</result>
//	<result item="2">
//	...
//	</result>
//	</results>
package aggregator
