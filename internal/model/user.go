package model

// User 用户表 — 对应 users（本子系统只读，账号由外部系统维护）
type User struct {
	UserID       string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name         string      `gorm:"type:varchar(100);not null"                     json:"name"`
	Email        string      `gorm:"type:varchar(255);not null"                     json:"email"`
	RoleIDs      StringArray `gorm:"type:uuid[];not null;default:'{}'"              json:"role_ids"`
	IsSystemUser bool        `gorm:"not null;default:false"                         json:"is_system_user"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
