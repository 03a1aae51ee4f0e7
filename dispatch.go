package wsfeed

// dispatcher routes decoded frames to topic handlers, then wildcard
// handlers, preserving registration order within each group. Each handler
// runs behind a recover so one misbehaving consumer cannot starve the
// rest.
type dispatcher struct {
	registry *topicRegistry
	logger   logger
}

func newDispatcher(registry *topicRegistry, logger logger) *dispatcher {
	return &dispatcher{
		registry: registry,
		logger:   logger.WithField("component", "dispatcher"),
	}
}

func (d *dispatcher) dispatch(m Message) {
	for _, fn := range d.registry.handlers(m.Type) {
		d.invoke(fn, m)
	}
	for _, fn := range d.registry.handlers(TopicWildcard) {
		d.invoke(fn, m)
	}
}

func (d *dispatcher) invoke(fn MessageHandler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("handler panicked on %s: %v", m.Type, r)
		}
	}()

	fn(m)
}

// fire runs lifecycle handlers with the same isolation as message
// handlers.
func fire(l *handlerList[EventHandler], log logger, err error) {
	for _, fn := range l.snapshot() {
		invokeEvent(fn, log, err)
	}
}

func invokeEvent(fn EventHandler, log logger, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("lifecycle handler panicked: %v", r)
		}
	}()

	fn(err)
}
