package catalog

import (
	"fmt"

	"github.com/lib/pq"
)

// CopySource is what a COPY statement needs at runtime: where the raw JSON
// lives and which role the cluster assumes to read it.
type CopySource struct {
	LogData  string // s3:// prefix of the event log files
	SongData string // s3:// prefix of the song metadata files
	RoleARN  string
}

const copyTemplate = `
COPY %s FROM %s
iam_role %s
json 'auto ignorecase';`

func copyStatement(table, path, roleARN string) Statement {
	return Statement{
		Name:  table + "_copy",
		Table: table,
		Kind:  KindCopy,
		SQL:   fmt.Sprintf(copyTemplate, table, pq.QuoteLiteral(path), pq.QuoteLiteral(roleARN)),
	}
}

// A user's level is taken from the row with the latest ts for that user.
const usersInsert = `
INSERT INTO users (
    SELECT se.userId, firstName, lastName, gender, uts_levels.level
    FROM staging_events se
    INNER JOIN (
        SELECT userId, max(ts) as mts from staging_events
        group by userId
    ) max_ts on (max_ts.userId = se.userId)
    INNER JOIN (
        SELECT userId, ts, level from staging_events
    ) uts_levels on (
        max_ts.userId = uts_levels.userId
        and max_ts.mts = uts_levels.ts
    )
    GROUP BY se.userId, firstName, lastName, gender, uts_levels.level
    ORDER by se.userId
);`

const artistsInsert = `
INSERT into artists (
    SELECT
        artist_id,
        artist_name,
        artist_location,
        artist_latitude,
        artist_longitude
    FROM staging_songs
    GROUP BY
        artist_id,
        artist_name,
        artist_location,
        artist_latitude,
        artist_longitude
);`

const songsInsert = `
INSERT into songs (
    SELECT song_id, title, artist_id, year, duration
    FROM staging_songs
    GROUP BY song_id, title, artist_id, year, duration
);`

const timeInsert = `
INSERT into time (
SELECT (timestamp 'epoch' + ts * interval '.001 seconds') as start_time,
    EXTRACT(
        HOUR from (timestamp 'epoch' + ts * interval '.001 seconds')
    ) as hour,
    EXTRACT(
        DAY from (timestamp 'epoch' + ts * interval '.001 seconds')
    ) as day,
    EXTRACT(
        WEEK from (timestamp 'epoch' + ts * interval '.001 seconds')
    ) as week,
    EXTRACT(
        MONTH from (timestamp 'epoch' + ts * interval '.001 seconds')
    ) as month,
    EXTRACT(
        YEAR from (timestamp 'epoch' + ts * interval '.001 seconds')
    ) as year,
    EXTRACT(
        DOW from (timestamp 'epoch' + ts * interval '.001 seconds')
    ) as weekday
FROM staging_events
GROUP BY start_time, hour, day, week, month, year, weekday
);`

// Events match artists by exact name, not by id.
const songplaysInsert = `
INSERT into songplays (
    start_time,
    user_id,
    level,
    song_id,
    artist_id,
    session_id,
    location,
    user_agent
) (
SELECT (timestamp 'epoch' + ts * interval '.001 seconds') as start_time,
    userId,
    level,
    sng.song_id,
    art.artist_id,
    sessionId,
    se.location,
    userAgent
 FROM staging_events se
 INNER JOIN artists art on (se.artist = art.name)
 INNER JOIN songs sng on (art.artist_id = sng.artist_id)
 WHERE se.page = 'NextSong'
);`

func insertStatement(table, sql string) Statement {
	return Statement{
		Name:  table + "_table_insert",
		Table: table,
		Kind:  KindInsert,
		SQL:   sql,
	}
}

// CopyStatements returns the bulk loads: staging_events, then staging_songs.
func CopyStatements(src CopySource) []Statement {
	return number([]Statement{
		copyStatement(StagingEvents, src.LogData, src.RoleARN),
		copyStatement(StagingSongs, src.SongData, src.RoleARN),
	})
}

// InsertStatements returns the transforms: dimensions, then songplays.
func InsertStatements() []Statement {
	return number([]Statement{
		insertStatement(Users, usersInsert),
		insertStatement(Artists, artistsInsert),
		insertStatement(Songs, songsInsert),
		insertStatement(Time, timeInsert),
		insertStatement(Songplays, songplaysInsert),
	})
}

// LoadStatements returns the copy list followed by the insert list, numbered
// as one sequence.
func LoadStatements(src CopySource) []Statement {
	return number(append(CopyStatements(src), InsertStatements()...))
}
