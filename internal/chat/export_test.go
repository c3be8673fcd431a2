package chat

// LockedRooms exposes the number of live per-room locks to tests.
func LockedRooms(s *Service) int { return s.locks.size() }
