package models

import "gorm.io/gorm"

// All lists every table owned by this service, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&GroupMember{},
		&Challenge{},
		&ChallengeParticipant{},
		&ChallengeAnnouncement{},
		&ChallengeWinner{},
		&Post{},
		&PostReaction{},
		&MoodGoal{},
		&StreakRecord{},
		&StreakEntry{},
		&Notification{},
	}
}

// Migrate runs AutoMigrate for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
