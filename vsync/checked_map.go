package vsync

import "sync"

// CheckedMap is a named lock set: Lock succeeds only if the name is not
// already held. The ingest loop uses it to guarantee at most one playlist
// sync per stream key is in flight even when a round overruns its cadence.
type CheckedMap struct {
	names map[string]interface{}
	l     sync.Mutex
}

func NewCheckedMap() *CheckedMap {
	return &CheckedMap{
		names: make(map[string]interface{}),
	}
}

func (cm *CheckedMap) Lock(name string, i interface{}) bool {
	cm.l.Lock()
	defer cm.l.Unlock()
	_, ok := cm.names[name]
	if ok {
		return false
	}
	cm.names[name] = i
	return true
}

func (cm *CheckedMap) Unlock(name string) {
	cm.l.Lock()
	defer cm.l.Unlock()
	delete(cm.names, name)
}
