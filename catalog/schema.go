package catalog

const stagingEventsCreate = `
CREATE TABLE IF NOT EXISTS staging_events (
    artist VARCHAR(128),
    auth VARCHAR(16),
    firstName VARCHAR(128),
    gender VARCHAR(1),
    itemInSession INTEGER,
    lastName VARCHAR(128),
    length NUMERIC(10, 5),
    level VARCHAR(4),
    location VARCHAR(256),
    method VARCHAR(5),
    page VARCHAR(16),
    registration NUMERIC,
    sessionId INTEGER,
    song VARCHAR(256),
    status INTEGER,
    ts BIGINT,
    userAgent TEXT,
    userId INTEGER
);`

const stagingSongsCreate = `
CREATE TABLE IF NOT EXISTS staging_songs (
    num_songs INTEGER,
    artist_id VARCHAR(18),
    artist_latitude NUMERIC(10, 5),
    artist_longitude NUMERIC(10, 5),
    artist_location VARCHAR(256),
    artist_name VARCHAR(256),
    song_id VARCHAR(18),
    title VARCHAR(256),
    duration NUMERIC(10, 5),
    year INTEGER
);`

const usersCreate = `
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER NOT NULL,
    first_name VARCHAR(128),
    last_name VARCHAR(128),
    gender VARCHAR(1),
    level VARCHAR(4),
    PRIMARY KEY(user_id)
);`

const artistsCreate = `
CREATE TABLE IF NOT EXISTS artists (
    artist_id VARCHAR(18) NOT NULL,
    name VARCHAR(256),
    location VARCHAR(256),
    latitude NUMERIC(10, 5),
    longitude NUMERIC(10, 5),
    PRIMARY KEY(artist_id)
) DISTKEY(artist_id);`

const songsCreate = `
CREATE TABLE IF NOT EXISTS songs (
    song_id VARCHAR(18) NOT NULL,
    title VARCHAR(256) NOT NULL,
    artist_id VARCHAR(18) NOT NULL,
    year INT,
    duration NUMERIC(10, 5),
    PRIMARY KEY(song_id),
    FOREIGN KEY(artist_id) REFERENCES artists(artist_id)
) DISTKEY(song_id);`

const timeCreate = `
CREATE TABLE IF NOT EXISTS time (
    start_time TIMESTAMP NOT NULL UNIQUE,
    hour INTEGER NOT NULL,
    day INTEGER NOT NULL,
    week INTEGER NOT NULL,
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    weekday INTEGER NOT NULL,
    PRIMARY KEY(start_time)
);`

// songplay_id starts at 0 and increments by 1.
const songplaysCreate = `
CREATE TABLE IF NOT EXISTS songplays (
    songplay_id INTEGER IDENTITY(0, 1) NOT NULL,
    start_time TIMESTAMP NOT NULL,
    user_id INTEGER NOT NULL,
    level VARCHAR(4),
    song_id VARCHAR(18) NOT NULL,
    artist_id VARCHAR(18) NOT NULL,
    session_id INTEGER NOT NULL,
    location VARCHAR(256),
    user_agent TEXT,
    PRIMARY KEY(songplay_id),
    FOREIGN KEY(user_id) REFERENCES users(user_id),
    FOREIGN KEY(song_id) REFERENCES songs(song_id),
    FOREIGN KEY(artist_id) REFERENCES artists(artist_id),
    FOREIGN KEY(start_time) REFERENCES time(start_time)
) DISTKEY(song_id) SORTKEY(start_time);`

func dropStatement(table string) Statement {
	return Statement{
		Name:  table + "_table_drop",
		Table: table,
		Kind:  KindDrop,
		SQL:   "DROP TABLE IF EXISTS " + table + ";",
	}
}

func createStatement(table, sql string) Statement {
	return Statement{
		Name:  table + "_table_create",
		Table: table,
		Kind:  KindCreate,
		SQL:   sql,
	}
}

// DropStatements returns the drop list: staging and fact tables first, then
// dimensions, ending with users which nothing is dropped after.
func DropStatements() []Statement {
	return number([]Statement{
		dropStatement(StagingEvents),
		dropStatement(StagingSongs),
		dropStatement(Songplays),
		dropStatement(Time),
		dropStatement(Songs),
		dropStatement(Artists),
		dropStatement(Users),
	})
}

// CreateStatements returns the create list: staging tables, dimensions with
// artists ahead of songs, and songplays last.
func CreateStatements() []Statement {
	return number([]Statement{
		createStatement(StagingEvents, stagingEventsCreate),
		createStatement(StagingSongs, stagingSongsCreate),
		createStatement(Users, usersCreate),
		createStatement(Artists, artistsCreate),
		createStatement(Songs, songsCreate),
		createStatement(Time, timeCreate),
		createStatement(Songplays, songplaysCreate),
	})
}

// RebuildStatements returns the drop list followed by the create list,
// numbered as one sequence.
func RebuildStatements() []Statement {
	return number(append(DropStatements(), CreateStatements()...))
}
