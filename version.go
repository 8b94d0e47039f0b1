package feedsync

// Version is the feedsync release version.
const Version = "0.1.0"
