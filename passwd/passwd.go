// Package passwd reads local user accounts from a passwd-format database.
// The scanner needs every account's home directory, not just the current
// user's, so os/user is not enough here.
package passwd

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

type User struct {
	Name  string
	UID   int
	GID   int
	Home  string
	Shell string
}

// Users parses the passwd file at path. Malformed lines are skipped.
func Users(path string) ([]User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var users []User
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// name:password:uid:gid:gecos:home:shell
		fields := strings.Split(line, ":")
		if len(fields) < 7 {
			continue
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		gid, err := strconv.Atoi(fields[3])
		if err != nil {
			continue
		}
		users = append(users, User{
			Name:  fields[0],
			UID:   uid,
			GID:   gid,
			Home:  fields[5],
			Shell: fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return users, err
	}
	return users, nil
}

// HomeDirs returns the distinct, non-empty home directories of the given
// users. Duplicates (shared homes) are collapsed.
func HomeDirs(users []User) []string {
	seen := make(map[string]struct{}, len(users))
	var homes []string
	for _, u := range users {
		if u.Home == "" || u.Home == "/" {
			continue
		}
		if _, ok := seen[u.Home]; ok {
			continue
		}
		seen[u.Home] = struct{}{}
		homes = append(homes, u.Home)
	}
	return homes
}
