package assets

// Logo is the compact header mark: a notebook inside a private network.
const Logo = `  .-----------.
  | [#] . [#] |
  |   .---.   |
  |   |>_ |   |
  '---'---'---'`

// BootLogo is the larger logo shown by configure.
const BootLogo = `
        .---------------------.
        |  ag-private-1  [#]  |
        |  .---------------.  |
        |  |   .-------.   |  |
        |  |   | >_  # |   |  |
        |  |   '-------'   |  |
        |  '-------+-------'  |
        |  ag-public-1 (nat)  |
        '----------+----------'
                   |
                 [s3]`
