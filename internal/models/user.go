package models

import "time"

// DefaultRole is assigned to every self-registered account.
const DefaultRole = "USER"

// Role is a named permission group. Users carry exactly one.
type Role struct {
	ID   int64  `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// User is an application account. Password holds the bcrypt hash and is
// never serialized to clients.
type User struct {
	ID        int64     `bson:"_id" json:"id"`
	Username  string    `bson:"username" json:"username"`
	Password  string    `bson:"password" json:"-"`
	Role      Role      `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"createdAt" json:"-"`
}
