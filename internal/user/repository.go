package user

import "sync"

// repository 在内存中缓存已知访客和他们的昵称。
// 所有读取都在这里完成，SQLite只在写入和启动时访问。
type repository struct {
	mu    sync.RWMutex
	known map[string]struct{}
	names map[string]string
}

var globalRepository = newRepository()

func newRepository() *repository {
	return &repository{
		known: make(map[string]struct{}),
		names: make(map[string]string),
	}
}

func (r *repository) isKnown(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[id]
	return ok
}

func (r *repository) put(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[u.UUID] = struct{}{}
	if u.Username != "" {
		r.names[u.UUID] = u.Username
	} else {
		delete(r.names, u.UUID)
	}
}

func (r *repository) username(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[id]
}

func (r *repository) reset(users []User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known = make(map[string]struct{}, len(users))
	r.names = make(map[string]string)
	for _, u := range users {
		r.known[u.UUID] = struct{}{}
		if u.Username != "" {
			r.names[u.UUID] = u.Username
		}
	}
}
