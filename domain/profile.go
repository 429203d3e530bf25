package domain

// UserID identifies one of the two board members.
type UserID string

const (
	UserA UserID = "userA"
	UserB UserID = "userB"
)

func (id UserID) Valid() bool {
	return id == UserA || id == UserB
}

// Lane returns the assignee lane owned by the user.
func (id UserID) Lane() Assignee {
	return Assignee(id)
}

// UserProfile holds the editable display settings of a board member.
type UserProfile struct {
	ID         UserID `json:"id" firestore:"id"`
	Name       string `json:"name" firestore:"name"`
	ThemeColor string `json:"themeColor" firestore:"themeColor"`
}

// Profiles maps each user to their profile.
type Profiles map[UserID]UserProfile

// DefaultProfiles returns the profiles seeded when the store has none.
func DefaultProfiles() Profiles {
	return Profiles{
		UserA: {ID: UserA, Name: "User A", ThemeColor: "teal"},
		UserB: {ID: UserB, Name: "User B", ThemeColor: "rose"},
	}
}

// Clone returns an independent copy of p.
func (p Profiles) Clone() Profiles {
	if p == nil {
		return nil
	}
	out := make(Profiles, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// WithDefaults fills in any missing user with its default profile.
func (p Profiles) WithDefaults() Profiles {
	out := p.Clone()
	if out == nil {
		out = Profiles{}
	}
	for id, def := range DefaultProfiles() {
		if _, ok := out[id]; !ok {
			out[id] = def
		}
	}
	return out
}

// Name returns the display name of the user, or the default name when unset.
func (p Profiles) Name(id UserID) string {
	if prof, ok := p[id]; ok && prof.Name != "" {
		return prof.Name
	}
	return DefaultProfiles()[id].Name
}
