package store

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- EPISODE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS episode SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS number ON episode TYPE int;
    DEFINE FIELD IF NOT EXISTS title ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS audio ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON episode TYPE string
        ASSERT $value IN ["unprocessed", "processing", "processed", "failed"]
        DEFAULT "unprocessed";
    DEFINE FIELD IF NOT EXISTS last_error ON episode TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS processed_at ON episode TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS created ON episode TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS episode_number ON episode FIELDS number UNIQUE;
    DEFINE INDEX IF NOT EXISTS episode_status ON episode FIELDS status;

    -- ==========================================================================
    -- SPEAKER TABLE
    -- ==========================================================================
    -- One row per (episode, diarization slot). Unique indexes enforce the
    -- per-episode invariant: one name per slot, one slot per name.
    DEFINE TABLE IF NOT EXISTS speaker SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS episode ON speaker TYPE record<episode>;
    DEFINE FIELD IF NOT EXISTS slot ON speaker TYPE int;
    DEFINE FIELD IF NOT EXISTS name ON speaker TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON speaker TYPE string
        ASSERT $value IN ["host", "guest"];

    DEFINE INDEX IF NOT EXISTS speaker_slot ON speaker FIELDS episode, slot UNIQUE;
    DEFINE INDEX IF NOT EXISTS speaker_name ON speaker FIELDS episode, name UNIQUE;

    -- ==========================================================================
    -- SEGMENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS segment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS episode ON segment TYPE record<episode>;
    DEFINE FIELD IF NOT EXISTS ordinal ON segment TYPE int;
    DEFINE FIELD IF NOT EXISTS speaker ON segment TYPE string;
    DEFINE FIELD IF NOT EXISTS text ON segment TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON segment TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created ON segment TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS segment_ordinal ON segment FIELDS episode, ordinal UNIQUE;
    DEFINE INDEX IF NOT EXISTS segment_embedding ON segment FIELDS embedding HNSW DIMENSION 1536 DIST COSINE TYPE F32;
    DEFINE ANALYZER IF NOT EXISTS segment_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS segment_text_ft ON segment FIELDS text FULLTEXT ANALYZER segment_analyzer BM25;
`
