package lifecycle

import "github.com/dimitrije/raidroom-api/internal/models"

// AllFriendsReady is the gate for active -> invited: at least one non-owner
// member, and every non-owner member has friend_ready set. The owner's flag
// is never looked at.
func AllFriendsReady(members []models.RoomMember) bool {
	ready, required := ReadyCounts(members)
	return required > 0 && ready == required
}

// ReadyCounts returns how many non-owner members are ready out of how many.
func ReadyCounts(members []models.RoomMember) (ready, required int) {
	for _, m := range members {
		if m.IsOwner() {
			continue
		}
		required++
		if m.FriendReady {
			ready++
		}
	}
	return ready, required
}
