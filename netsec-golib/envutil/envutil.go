package envutil

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// GetenvDefault gets the value of an environment variable, or returns the
// specified default value if that variable is not set.
func GetenvDefault(name, defaultValue string) string {
	val, found := os.LookupEnv(name)
	if !found || val == "" {
		return defaultValue
	}
	return val
}

// GetenvDefaultFloat gets an environment variable as a float64, or else returns the default
func GetenvDefaultFloat(name string, defaultVal float64) float64 {
	val, found := os.LookupEnv(name)
	if !found || val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Fatalf("environment variable %s should be a number: %v", name, err)
	}
	return f
}

// MustGetenv gets the value of an environment variable, or exits if it has no value.
func MustGetenv(name string) string {
	val, found := os.LookupEnv(name)
	if !found || val == "" {
		log.Fatalf("environment variable %s is required but not set", name)
	}
	return val
}

// LoadDotEnv loads the first readable dotenv file among paths. Variables
// already present in the process environment are left untouched.
// It returns the path that was loaded, or "" if none was found.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("ignoring unreadable dotenv file %s: %v", path, err)
			continue
		}
		return path
	}
	return ""
}
