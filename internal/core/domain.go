package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

// Currencies supported by settings. Unknown codes are rejected on update.
const (
	CurrencyPHP = "PHP"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"
	CurrencyJPY = "JPY"
)

type (
	CategoryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID            int64
		Username      string
		Email         string
		PasswordHash  string
		LoginAttempts int
		LockedUntil   *time.Time
		CreatedAt     time.Time
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Type      CategoryType
		CreatedAt time.Time
		UpdatedAt time.Time

		// TransactionCount is populated by list queries only.
		TransactionCount int64
	}

	Transaction struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Amount      Money
		Description string
		Date        Date
		Type        CategoryType
		CreatedAt   time.Time
		UpdatedAt   time.Time

		// CategoryName is populated by list queries only.
		CategoryName string
	}

	Settings struct {
		UserID          int64
		BusinessName    string
		Currency        string
		FiscalYearStart *Date
		UpdatedAt       time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidType        = errors.New("invalid category type")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrEmptyName          = errors.New("empty category name")
	ErrNameTooLong        = errors.New("category name too long (max 100 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 1000 characters)")
	ErrWeakPassword       = errors.New("password must be at least 8 characters with uppercase, lowercase, and number")
	ErrPasswordTooLong    = errors.New("password too long (max 128 characters)")
	ErrCommonPassword     = errors.New("password is too common")
	ErrPasswordHasUser    = errors.New("password cannot contain the username")
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// Minimal denylist of passwords that clear the character-class rules
	// but are still trivially guessable.
	commonPasswords = map[string]struct{}{
		"password":    {},
		"password1":   {},
		"password123": {},
		"12345678":    {},
		"qwerty123":   {},
		"abc12345":    {},
		"letmein123":  {},
	}
)

// ValidateUsername reports whether a username is 3-50 characters of
// alphanumerics and underscores.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateEmail performs a format-only check. Deliverability is not verified.
func ValidateEmail(email string) error {
	if len(email) > 254 || !emailRe.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the registration password policy: length 8-128,
// at least one uppercase letter, one lowercase letter and one digit, not on
// the common-password denylist, and not containing the username.
func ValidatePassword(password, username string) error {
	if len(password) > 128 {
		return ErrPasswordTooLong
	}
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return ErrCommonPassword
	}
	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return ErrPasswordHasUser
	}
	return nil
}

// ValidateCurrency accepts the supported ISO-like currency codes.
func ValidateCurrency(code string) error {
	switch code {
	case CurrencyPHP, CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY:
		return nil
	}
	return ErrInvalidCurrency
}

func (t CategoryType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

// ParseDate parses a YYYY-MM-DD calendar date. time.Parse already rejects
// impossible dates such as 2024-02-30.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String renders the date in the canonical YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SanitizeText trims whitespace and strips control characters except tab,
// newline and carriage return.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	return c.Type.Validate()
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 1000 {
		return ErrDescriptionTooLong
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return t.Type.Validate()
}
