package index

import "sync"

// locks holds one mutex per index file so every FileIndex pointing at the
// same path shares it.
var locks = struct {
	sync.Mutex
	byPath map[string]*sync.Mutex
}{byPath: make(map[string]*sync.Mutex)}

// lockFor returns the mutex guarding the index at path. path must already
// be cleaned and absolute.
func lockFor(path string) *sync.Mutex {
	locks.Lock()
	defer locks.Unlock()

	mu, ok := locks.byPath[path]
	if !ok {
		mu = &sync.Mutex{}
		locks.byPath[path] = mu
	}
	return mu
}
