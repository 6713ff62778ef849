// Package sender defines the pluggable dispatch target of the engine.
//
// A sender is either Simple (one independent call per element) or
// BlockEnabled (open a block, send every element of the block through the
// handle, close the block). The capability is fixed when the Dispatcher is
// built and never probed at dispatch time:
//
//	d := sender.AsSimple(mySender, sender.WithName("sqs"))
//	d := sender.AsBlockEnabled(myBlockSender, sender.WithConcurrentHandle())
//
// Decorators wrap every call of either kind:
//
//	d = sender.WithLogging(sender.WithTracing(d), logger.Get("sender"))
package sender
