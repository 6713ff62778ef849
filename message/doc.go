// Package message provides Message, the payload wrapper handed between
// iterators, senders and the aggregator.
//
// A Message holds exactly one of: nothing, a string, a byte slice or a
// stream. Stream-backed messages are read at most once; AsText and AsBytes
// buffer the stream on first use and serve the buffered copy afterwards.
// Close releases the stream, after which every read fails with ErrClosed.
//
// Ownership is explicit: ScheduleCloseOn hands the message to a scope.Scope,
// which closes it at teardown unless it was unscheduled first.
//
//	msg := message.FromReader(file, message.WithCharset("iso-8859-1"))
//	_ = msg.ScheduleCloseOn(sc, "reader")
//	text, err := msg.AsText()
package message
