package constants

const VERSION = "0.1.0"

const USER_AGENT = "matchsync/" + VERSION + " (+https://github.com/matchsync/matchsync)"
