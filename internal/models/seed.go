package models

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var log = console.New("SEEDER")

// Default allow-list a bootstrap client starts with
var defaultAllowedResources = map[string][]string{
	"tuples":       {"create", "read", "delete"},
	"models":       {"create", "read", "update", "delete"},
	"apikeys":      {"create", "read", "delete"},
	"groups":       {"create", "read", "update", "delete"},
	"conditions":   {"read", "test"},
	"dependencies": {"read"},
}

var defaultAPIKeyPermissions = []string{
	"tuples:read",
	"models:read",
	"dependencies:read",
}

// SeedBootstrapClient makes sure the client named by BOOTSTRAP_CLIENT_ID
// exists so the rest of the system has something to attach grants to.
func SeedBootstrapClient(db *gorm.DB) (*Client, error) {
	clientID := os.Getenv("BOOTSTRAP_CLIENT_ID")
	if clientID == "" {
		clientID = "bootstrap"
	}

	client := &Client{}
	err := db.Where("client_id = ?", clientID).First(client).Error
	if err == nil {
		return client, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	allowed, err := json.Marshal(defaultAllowedResources)
	if err != nil {
		return nil, err
	}
	defaults, err := json.Marshal(defaultAPIKeyPermissions)
	if err != nil {
		return nil, err
	}

	client = &Client{
		ClientID:                 clientID,
		Name:                     "Bootstrap Client",
		AccessPolicy:             AccessPolicyRestricted,
		AllowsAPIKeys:            true,
		AllowedResources:         datatypes.JSON(allowed),
		DefaultAPIKeyPermissions: datatypes.JSON(defaults),
	}
	if err := db.Create(client).Error; err != nil {
		return nil, err
	}

	log.Success("Seeded bootstrap client %s", clientID)
	return client, nil
}

// CreateSuperAdminFromEnv creates the super admin user declared in the
// environment and grants it the owner relation on the bootstrap client.
func CreateSuperAdminFromEnv(db *gorm.DB) error {
	email := os.Getenv("SUPER_ADMIN_EMAIL")
	password := os.Getenv("SUPER_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Warn("SUPER_ADMIN_EMAIL/SUPER_ADMIN_PASSWORD not set, skipping super admin seed")
		return nil
	}

	var user User
	err := db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash super admin password: %w", err)
	}

	user = User{
		Email:     email,
		Password:  string(hashed),
		FirstName: "Super",
		LastName:  "Admin",
		Role:      UserRoleSuperAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	client, err := SeedBootstrapClient(db)
	if err != nil {
		return err
	}

	// Owner tuple on the bootstrap client so the super admin can administer it
	tuple := Tuple{
		EntityType:  fmt.Sprintf("client_%s", client.ClientID),
		EntityID:    client.ClientID,
		Relation:    string(RelationOwner),
		SubjectType: SubjectTypeUser,
		SubjectID:   user.ID,
	}
	if err := db.Create(&tuple).Error; err != nil {
		return err
	}

	log.Success("Seeded super admin %s", email)
	return nil
}
