package activity

import (
	"strings"

	"github.com/okanot/commitbadge/internal/githubapi"
)

// botFragments are case-insensitive substrings identifying known automation
// accounts. They are matched against the concatenation of login, display
// name, and email.
var botFragments = []string{
	"dependabot",
	"renovate",
	"greenkeeper",
	"snyk-bot",
	"codecov",
	"github-actions",
	"imgbot",
	"allcontributors",
	"[bot]",
}

// botEmailSuffix is the provider's no-reply bot email domain. Bot commit
// emails end in @noreply.github.com; regular users carry
// @users.noreply.github.com instead, which must not match.
const botEmailSuffix = "@noreply.github.com"

// IsBotIdentity reports whether the identity fields look like an automation
// account. Missing fields are treated as empty.
func IsBotIdentity(login, name, email string) bool {
	combined := strings.ToLower(login + name + email)
	for _, fragment := range botFragments {
		if strings.Contains(combined, fragment) {
			return true
		}
	}

	lowerLogin := strings.ToLower(login)
	if strings.HasSuffix(lowerLogin, "-bot") || strings.HasPrefix(lowerLogin, "bot-") {
		return true
	}

	lowerEmail := strings.ToLower(email)
	if strings.HasSuffix(lowerEmail, botEmailSuffix) &&
		!strings.HasSuffix(lowerEmail, "@users.noreply.github.com") {
		return true
	}

	return false
}

// QualifiesForUser reports whether a commit counts toward the monitored
// user's activity. A commit is rejected when its identity matches a bot
// pattern, when it is a merge commit (two or more parents), or when its
// author login is not exactly the monitored login. Commits authored by the
// monitored user but attributed to another login are deliberately rejected.
func QualifiesForUser(commit githubapi.Commit, monitoredLogin string) bool {
	if IsBotIdentity(commit.Login, commit.AuthorName, commit.AuthorEmail) {
		return false
	}
	if commit.Parents >= 2 {
		return false
	}
	return commit.Login == monitoredLogin
}
