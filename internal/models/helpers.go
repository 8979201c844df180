package models

import (
	"gorm.io/gorm"
)

// GetClientByClientID retrieves a client from the database by its public client id
func GetClientByClientID(clientID string, db *gorm.DB) (*Client, error) {
	client := &Client{}
	if err := db.Where("client_id = ? AND is_deleted = false", clientID).First(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

// GetAPIKeyByHash looks an API key up by its stored hash
func GetAPIKeyByHash(hash string, db *gorm.DB) (*APIKey, error) {
	key := &APIKey{}
	if err := db.Where("key_hash = ? AND is_deleted = false", hash).First(key).Error; err != nil {
		return nil, err
	}
	return key, nil
}

// GetGroupMembers returns the members of a group
func GetGroupMembers(groupID string, db *gorm.DB) ([]GroupMember, error) {
	var members []GroupMember
	if err := db.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
