package services

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/errs"
	"github.com/teamforge/teamforge/internal/models"
	"gorm.io/gorm"
)

// DirectoryUser is the resolved identity of a user reference.
type DirectoryUser struct {
	UserID   uint
	Username string
	Email    string
	IsActive bool
}

// UserDirectory resolves a user reference (numeric id or email address) to an
// existing account. The membership coordinator consumes this at its boundary;
// it never touches the users table directly.
type UserDirectory interface {
	Resolve(ref string) (*DirectoryUser, error)
}

// DBUserDirectory resolves references against the local users table.
type DBUserDirectory struct {
	db *gorm.DB
}

func NewDBUserDirectory(db *gorm.DB) *DBUserDirectory {
	return &DBUserDirectory{db: db}
}

func (d *DBUserDirectory) Resolve(ref string) (*DirectoryUser, error) {
	var user models.User
	var err error

	if strings.Contains(ref, "@") {
		err = d.db.Where("email = ?", ref).First(&user).Error
	} else if id, convErr := strconv.ParseUint(ref, 10, 32); convErr == nil {
		err = d.db.First(&user, uint(id)).Error
	} else {
		err = d.db.Where("username = ?", ref).First(&user).Error
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	return &DirectoryUser{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		IsActive: user.IsActive,
	}, nil
}

// LDAPDirectory resolves references against an LDAP server, falling back to
// the local table for numeric ids. Used when accounts are provisioned in a
// corporate directory but teams live here.
type LDAPDirectory struct {
	config   *config.LDAPConfig
	fallback *DBUserDirectory
	db       *gorm.DB
}

func NewLDAPDirectory(cfg *config.LDAPConfig, db *gorm.DB) *LDAPDirectory {
	return &LDAPDirectory{
		config:   cfg,
		fallback: NewDBUserDirectory(db),
		db:       db,
	}
}

func (d *LDAPDirectory) Resolve(ref string) (*DirectoryUser, error) {
	// Local accounts and numeric ids resolve without a directory round trip.
	if resolved, err := d.fallback.Resolve(ref); err == nil {
		return resolved, nil
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	entry, err := d.search(ref)
	if err != nil {
		return nil, err
	}

	// Provision a shadow account so the membership tables can reference a
	// stable local user id.
	user := models.User{
		Username: entry.Username,
		Email:    entry.Email,
		Nickname: entry.Nickname,
		AuthType: "ldap",
		IsActive: true,
	}
	if err := d.db.Where("username = ?", entry.Username).
		FirstOrCreate(&user).Error; err != nil {
		return nil, err
	}

	return &DirectoryUser{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		IsActive: user.IsActive,
	}, nil
}

// Authenticate verifies a username/password pair against the directory and
// returns the matched entry.
func (d *LDAPDirectory) Authenticate(username, password string) (*DirectoryUser, error) {
	if !d.config.Enabled {
		return nil, fmt.Errorf("LDAP is not enabled")
	}

	conn, err := d.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if d.config.BindDN != "" {
		if err := conn.Bind(d.config.BindDN, d.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	filter := fmt.Sprintf(d.config.UserFilter, ldap.EscapeFilter(username))
	searchRequest := ldap.NewSearchRequest(
		d.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		[]string{"dn", "cn", "mail", "uid", "sAMAccountName"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, fmt.Errorf("user not found in LDAP")
	}

	e := result.Entries[0]
	if err := conn.Bind(e.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	uid := e.GetAttributeValue("uid")
	if uid == "" {
		uid = e.GetAttributeValue("sAMAccountName")
	}

	// Provision or refresh the shadow account.
	user := models.User{
		Username: uid,
		Email:    e.GetAttributeValue("mail"),
		Nickname: e.GetAttributeValue("cn"),
		AuthType: "ldap",
		IsActive: true,
	}
	if err := d.db.Where("username = ?", uid).FirstOrCreate(&user).Error; err != nil {
		return nil, err
	}

	return &DirectoryUser{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		IsActive: user.IsActive,
	}, nil
}

type ldapEntry struct {
	DN       string
	Username string
	Email    string
	Nickname string
}

func (d *LDAPDirectory) search(ref string) (*ldapEntry, error) {
	if !d.config.Enabled {
		return nil, errs.NotFound("user")
	}

	conn, err := d.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if d.config.BindDN != "" {
		if err := conn.Bind(d.config.BindDN, d.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	filter := fmt.Sprintf(d.config.UserFilter, ldap.EscapeFilter(ref))
	if strings.Contains(ref, "@") {
		filter = fmt.Sprintf("(mail=%s)", ldap.EscapeFilter(ref))
	}

	searchRequest := ldap.NewSearchRequest(
		d.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		[]string{"dn", "cn", "mail", "uid", "sAMAccountName"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, errs.NotFound("user")
	}

	e := result.Entries[0]
	entry := &ldapEntry{
		DN:       e.DN,
		Username: e.GetAttributeValue("uid"),
		Email:    e.GetAttributeValue("mail"),
		Nickname: e.GetAttributeValue("cn"),
	}
	if entry.Username == "" {
		entry.Username = e.GetAttributeValue("sAMAccountName")
	}
	return entry, nil
}

func (d *LDAPDirectory) dial() (*ldap.Conn, error) {
	addr := fmt.Sprintf("%s:%d", d.config.Host, d.config.Port)
	if d.config.UseSSL {
		conn, err := ldap.DialTLS("tcp", addr, &tls.Config{InsecureSkipVerify: true})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
		}
		return conn, nil
	}
	conn, err := ldap.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	return conn, nil
}
